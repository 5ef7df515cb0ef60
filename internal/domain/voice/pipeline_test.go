package voice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/platform/config"
	platformerrors "vocalis-server-go/internal/platform/errors"
	"vocalis-server-go/internal/platform/logging"
)

const fakeDim = 256

type fakeEmbedder struct {
	rate int
	dim  int
}

func (f *fakeEmbedder) SampleRate() int { return f.rate }
func (f *fakeEmbedder) Dimension() int  { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, w audio.Waveform) (VoicePrint, error) {
	if w.Empty() {
		return nil, errors.New("empty waveform")
	}
	var mean float64
	for _, s := range w.Samples {
		mean += math.Abs(float64(s))
	}
	mean /= float64(len(w.Samples))

	print := make(VoicePrint, f.dim)
	for i := range print {
		print[i] = float32(mean) * float32(i%17) / 17
	}
	return print, nil
}

type fakeSynthesizer struct {
	framesPerChar int
	melChannels   int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, texts []string, prints []VoicePrint) ([]MelSpectrogram, error) {
	if len(texts) != len(prints) {
		return nil, errors.New("batch mismatch")
	}
	specs := make([]MelSpectrogram, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, errors.New("unrenderable text")
		}
		frames := make([][]float32, len(text)*f.framesPerChar)
		for t := range frames {
			frame := make([]float32, f.melChannels)
			for c := range frame {
				frame[c] = float32(math.Sin(float64(t*f.melChannels+c)) * float64(prints[i][0]+1))
			}
			frames[t] = frame
		}
		specs[i] = MelSpectrogram{Frames: frames}
	}
	return specs, nil
}

type fakeVocoder struct {
	rate            int
	samplesPerFrame int
}

func (f *fakeVocoder) SampleRate() int { return f.rate }

func (f *fakeVocoder) Vocode(ctx context.Context, mel MelSpectrogram, opts VocodeOptions) (audio.Waveform, error) {
	if !mel.Valid() {
		return audio.Waveform{}, errors.New("invalid spectrogram shape")
	}
	n := len(mel.Frames) * f.samplesPerFrame
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.6 * float32(math.Sin(2*math.Pi*220*float64(i)/float64(f.rate)))
	}
	return audio.Waveform{Samples: samples, SampleRate: f.rate}, nil
}

// spyStretcher records invocations and optionally fails every call.
type spyStretcher struct {
	mu     sync.Mutex
	calls  int
	failed bool
	inner  audio.Stretcher
}

func (s *spyStretcher) Stretch(w audio.Waveform, rate float64) (audio.Waveform, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.failed {
		return audio.Waveform{}, errors.New("stretch backend unavailable")
	}
	return s.inner.Stretch(w, rate)
}

func (s *spyStretcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fakeModelSet() *ModelSet {
	return &ModelSet{
		Embedder:    &fakeEmbedder{rate: 16000, dim: fakeDim},
		Synthesizer: &fakeSynthesizer{framesPerChar: 20, melChannels: 80},
		Vocoder:     &fakeVocoder{rate: 16000, samplesPerFrame: 160},
	}
}

func fakeLoader(loads *atomic.Int32) ModelLoader {
	return func(ctx context.Context) (*ModelSet, error) {
		loads.Add(1)
		return fakeModelSet(), nil
	}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()

	var loads atomic.Int32
	return NewPipeline(config.Default(), logging.Discard(), fakeLoader(&loads), opts...)
}

func speechUpload(t *testing.T, dur time.Duration) []byte {
	t.Helper()

	rate := 16000
	n := int(float64(rate) * dur.Seconds())
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*180*float64(i)/float64(rate)))
	}
	data, err := audio.EncodeWAV(audio.Waveform{Samples: samples, SampleRate: rate})
	require.NoError(t, err)
	return data
}

func testVoicePrint() VoicePrint {
	print := make(VoicePrint, fakeDim)
	for i := range print {
		print[i] = float32(i) / fakeDim
	}
	return print
}

func TestPipeline_ExtractVoicePrint(t *testing.T) {
	p := newTestPipeline(t)

	print, err := p.ExtractVoicePrint(context.Background(), speechUpload(t, 3*time.Second), "sample.wav")
	require.NoError(t, err)

	assert.Len(t, print, fakeDim)
}

func TestPipeline_ExtractVoicePrint_DimensionStableAcrossRecordings(t *testing.T) {
	p := newTestPipeline(t)

	for _, dur := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		print, err := p.ExtractVoicePrint(context.Background(), speechUpload(t, dur), "sample.wav")
		require.NoError(t, err)
		assert.Len(t, print, fakeDim)
	}
}

func TestPipeline_ExtractVoicePrint_CorruptAudio(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ExtractVoicePrint(context.Background(), []byte("not really audio"), "junk.bin")

	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindDecode))
}

func TestPipeline_ExtractVoicePrint_SilentRecording(t *testing.T) {
	p := newTestPipeline(t)

	silent, err := audio.EncodeWAV(audio.Waveform{
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	})
	require.NoError(t, err)

	_, err = p.ExtractVoicePrint(context.Background(), silent, "silence.wav")

	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindEmbedding))
}

func TestPipeline_Synthesize(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hello world",
		VoicePrint: testVoicePrint(),
		Speed:      1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, 16000, result.Waveform.SampleRate)
	assert.False(t, result.Waveform.Empty())
	assert.InDelta(t, 0.99, float64(result.Waveform.Peak()), 1e-3)
}

func TestPipeline_Synthesize_Deterministic(t *testing.T) {
	p := newTestPipeline(t)
	req := SynthesisRequest{Text: "Hello world", VoicePrint: testVoicePrint(), Speed: 1.0}

	first, err := p.Synthesize(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Synthesize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Waveform.Samples, second.Waveform.Samples)
}

func TestPipeline_Synthesize_Validation(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name string
		req  SynthesisRequest
	}{
		{"empty text", SynthesisRequest{VoicePrint: testVoicePrint()}},
		{"missing voiceprint", SynthesisRequest{Text: "Hello"}},
		{"negative speed", SynthesisRequest{Text: "Hello", VoicePrint: testVoicePrint(), Speed: -0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Synthesize(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, platformerrors.IsKind(err, platformerrors.KindValidation))
		})
	}
}

func TestPipeline_Synthesize_SpeedEpsilonNeverStretches(t *testing.T) {
	spy := &spyStretcher{inner: audio.NewSOLAStretcher()}
	p := newTestPipeline(t, WithStretcher(spy))

	for _, speed := range []float64{0, 1.0, 1.0 + 1e-6, 1.0 - 1e-6} {
		_, err := p.Synthesize(context.Background(), SynthesisRequest{
			Text:       "Hello world",
			VoicePrint: testVoicePrint(),
			Speed:      speed,
		})
		require.NoError(t, err, "speed %v", speed)
	}

	assert.Equal(t, 0, spy.callCount())
}

func TestPipeline_Synthesize_SpeedShortensDuration(t *testing.T) {
	spy := &spyStretcher{inner: audio.NewSOLAStretcher()}
	p := newTestPipeline(t, WithStretcher(spy))
	print := testVoicePrint()

	base, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello world", VoicePrint: print, Speed: 1.0,
	})
	require.NoError(t, err)

	fast, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello world", VoicePrint: print, Speed: 1.2,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, spy.callCount())
	expected := base.Waveform.Duration().Seconds() / 1.2
	assert.InDelta(t, expected, fast.Waveform.Duration().Seconds(), 0.2)
}

func TestPipeline_Synthesize_StretchDegradesSoftly(t *testing.T) {
	spy := &spyStretcher{failed: true}
	p := newTestPipeline(t, WithStretcher(spy))
	print := testVoicePrint()

	base, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello world", VoicePrint: print, Speed: 1.0,
	})
	require.NoError(t, err)

	degraded, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello world", VoicePrint: print, Speed: 1.2,
	})
	require.NoError(t, err, "stretch failure must not fail the request")

	assert.Equal(t, 1, spy.callCount())
	assert.Equal(t, len(base.Waveform.Samples), len(degraded.Waveform.Samples))
}

func TestPipeline_Synthesize_NoStretcherDegradesSoftly(t *testing.T) {
	p := newTestPipeline(t, WithStretcher(nil))

	result, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello world", VoicePrint: testVoicePrint(), Speed: 1.2,
	})

	require.NoError(t, err)
	assert.False(t, result.Waveform.Empty())
}

func TestPipeline_ModelsLoadExactlyOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	loader := func(ctx context.Context) (*ModelSet, error) {
		loads.Add(1)
		time.Sleep(30 * time.Millisecond)
		return fakeModelSet(), nil
	}
	p := NewPipeline(config.Default(), logging.Discard(), loader)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Synthesize(context.Background(), SynthesisRequest{
				Text:       fmt.Sprintf("request %d", i),
				VoicePrint: testVoicePrint(),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestPipeline_InitFailureIsRetriedNextRequest(t *testing.T) {
	var loads atomic.Int32
	loader := func(ctx context.Context) (*ModelSet, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("model files missing")
		}
		return fakeModelSet(), nil
	}
	p := NewPipeline(config.Default(), logging.Discard(), loader)

	_, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello", VoicePrint: testVoicePrint(),
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindModelInit))

	_, err = p.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello", VoicePrint: testVoicePrint(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestPipeline_HealthReflectsLoadState(t *testing.T) {
	p := newTestPipeline(t)

	status := p.Health()
	assert.False(t, status.ModelsLoaded, "cold pipeline must report unloaded models")
	assert.Equal(t, 16000, status.SampleRate)

	_, err := p.ExtractVoicePrint(context.Background(), speechUpload(t, 2*time.Second), "warmup.wav")
	require.NoError(t, err)

	assert.True(t, p.Health().ModelsLoaded)
}
