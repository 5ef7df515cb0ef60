package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(t *testing.T, freq float64, rate int, dur time.Duration, amp float32) Waveform {
	t.Helper()

	n := int(float64(rate) * dur.Seconds())
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return Waveform{Samples: samples, SampleRate: rate}
}

func silence(rate int, dur time.Duration) []float32 {
	return make([]float32, int(float64(rate)*dur.Seconds()))
}

func defaultTrimOptions() TrimOptions {
	return TrimOptions{Threshold: 0.01, FrameMs: 20}
}

func TestWaveform_Duration(t *testing.T) {
	w := Waveform{Samples: make([]float32, 16000), SampleRate: 16000}
	assert.Equal(t, time.Second, w.Duration())

	assert.Equal(t, time.Duration(0), Waveform{}.Duration())
}

func TestPeakNormalize(t *testing.T) {
	w := Waveform{Samples: []float32{0.1, -0.5, 0.25}, SampleRate: 16000}

	out := PeakNormalize(w, 1.0)

	assert.InDelta(t, 1.0, float64(out.Peak()), 1e-6)
	assert.InDelta(t, -1.0, float64(out.Samples[1]), 1e-6)
	// Input untouched.
	assert.InDelta(t, -0.5, float64(w.Samples[1]), 1e-6)
}

func TestPeakNormalize_TargetBelowFullScale(t *testing.T) {
	w := Waveform{Samples: []float32{0.5, -2.0}, SampleRate: 16000}

	out := PeakNormalize(w, 0.99)

	assert.InDelta(t, 0.99, float64(out.Peak()), 1e-6)
}

func TestPeakNormalize_AllZeroGuard(t *testing.T) {
	w := Waveform{Samples: []float32{0, 0, 0}, SampleRate: 16000}

	out := PeakNormalize(w, 1.0)

	assert.Equal(t, []float32{0, 0, 0}, out.Samples)
}

func TestTrimSilence_StripsLeadingAndTrailing(t *testing.T) {
	rate := 16000
	tone := sineWave(t, 440, rate, 500*time.Millisecond, 0.8)

	var samples []float32
	samples = append(samples, silence(rate, 300*time.Millisecond)...)
	samples = append(samples, tone.Samples...)
	samples = append(samples, silence(rate, 200*time.Millisecond)...)
	w := Waveform{Samples: samples, SampleRate: rate}

	out := TrimSilence(w, defaultTrimOptions())

	require.False(t, out.Empty())
	assert.Equal(t, rate, out.SampleRate)
	// Roughly the tone survives; padding is gone.
	assert.InDelta(t, 0.5, out.Duration().Seconds(), 0.05)
	assert.LessOrEqual(t, float64(out.Peak()), 1.0+1e-6)
}

func TestTrimSilence_AllSilentYieldsEmpty(t *testing.T) {
	w := Waveform{Samples: silence(16000, time.Second), SampleRate: 16000}

	out := TrimSilence(w, defaultTrimOptions())

	assert.True(t, out.Empty())
	assert.Equal(t, 16000, out.SampleRate)
}

func TestTrimSilence_NoSilenceKeepsEverySample(t *testing.T) {
	tone := sineWave(t, 440, 16000, 400*time.Millisecond, 0.2)

	out := TrimSilence(tone, defaultTrimOptions())

	assert.Equal(t, len(tone.Samples), len(out.Samples))
	// Trimming peak-normalizes as its first step.
	assert.InDelta(t, 1.0, float64(out.Peak()), 1e-3)
}

func TestTrimSilence_DeterministicAcrossCalls(t *testing.T) {
	rate := 16000
	var samples []float32
	samples = append(samples, silence(rate, 100*time.Millisecond)...)
	samples = append(samples, sineWave(t, 220, rate, 300*time.Millisecond, 0.6).Samples...)
	w := Waveform{Samples: samples, SampleRate: rate}

	first := TrimSilence(w, defaultTrimOptions())
	second := TrimSilence(w, defaultTrimOptions())

	assert.Equal(t, first.Samples, second.Samples)
}
