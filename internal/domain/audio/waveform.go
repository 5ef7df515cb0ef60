package audio

import (
	"math"
	"time"
)

// Waveform is the canonical in-memory audio representation: mono float32
// samples in [-1, 1] after normalization, paired with their sample rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Empty reports whether the waveform carries no samples.
func (w Waveform) Empty() bool {
	return len(w.Samples) == 0
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Peak returns the maximum absolute sample value.
func (w Waveform) Peak() float32 {
	var peak float32
	for _, s := range w.Samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	return peak
}

// PeakNormalize scales the waveform so its peak hits target. An all-zero
// signal is returned unchanged; there is nothing to scale.
func PeakNormalize(w Waveform, target float32) Waveform {
	peak := w.Peak()
	if peak == 0 {
		return w
	}

	scale := target / peak
	out := make([]float32, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s * scale
	}
	return Waveform{Samples: out, SampleRate: w.SampleRate}
}

// TrimOptions tunes silence trimming.
type TrimOptions struct {
	// Threshold is the RMS energy below which a frame counts as silence,
	// relative to a peak-normalized signal.
	Threshold float64
	// FrameMs is the analysis window length.
	FrameMs int
}

// TrimSilence peak-normalizes the waveform and strips leading and trailing
// frames whose energy falls under the threshold. The same routine runs on
// fresh recordings before embedding and on vocoder output before it is
// returned; both call sites must trim identically.
func TrimSilence(w Waveform, opts TrimOptions) Waveform {
	if w.Empty() {
		return w
	}

	normalized := PeakNormalize(w, 1.0)

	frame := normalized.SampleRate * opts.FrameMs / 1000
	if frame <= 0 {
		frame = 1
	}

	n := len(normalized.Samples)
	firstActive := -1
	lastActive := -1
	for start := 0; start < n; start += frame {
		end := start + frame
		if end > n {
			end = n
		}
		if frameRMS(normalized.Samples[start:end]) >= opts.Threshold {
			if firstActive < 0 {
				firstActive = start
			}
			lastActive = end
		}
	}

	if firstActive < 0 {
		return Waveform{SampleRate: normalized.SampleRate}
	}

	return Waveform{
		Samples:    normalized.Samples[firstActive:lastActive],
		SampleRate: normalized.SampleRate,
	}
}

func frameRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
