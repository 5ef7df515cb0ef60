package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/platform/config"
	platformerrors "vocalis-server-go/internal/platform/errors"
	"vocalis-server-go/internal/platform/logging"
)

// Pipeline orchestrates the synthesis stages and owns the lazy one-time
// model initialization. Every request carries only its own intermediate
// data; the loaded model set is the single piece of shared state.
type Pipeline struct {
	cfg      *config.Config
	logger   *logging.Logger
	ingestor *audio.Ingestor
	post     *PostProcessor
	loader   ModelLoader

	// mu guards the check-then-load sequence so concurrent first requests
	// trigger the expensive load exactly once. A failed load records no
	// success, so the next request re-attempts it.
	mu     sync.Mutex
	models *ModelSet
}

// Option tweaks pipeline construction.
type Option func(*options)

type options struct {
	stretcher audio.Stretcher
}

// WithStretcher overrides the time-stretch capability. Passing nil disables
// stretching entirely; the post-processor then always degrades softly.
func WithStretcher(s audio.Stretcher) Option {
	return func(o *options) {
		o.stretcher = s
	}
}

func NewPipeline(cfg *config.Config, logger *logging.Logger, loader ModelLoader, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}

	o := options{stretcher: audio.NewSOLAStretcher()}
	for _, opt := range opts {
		opt(&o)
	}

	trim := audio.TrimOptions{
		Threshold: cfg.Audio.TrimThreshold,
		FrameMs:   cfg.Audio.TrimFrameMs,
	}

	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		ingestor: audio.NewIngestor(logger),
		post:     NewPostProcessor(trim, o.stretcher, logger),
		loader:   loader,
	}
}

// ensureModels returns the shared model set, loading it on first use.
// Callers block while another request holds the lock mid-load.
func (p *Pipeline) ensureModels(ctx context.Context) (*ModelSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.models != nil {
		return p.models, nil
	}

	p.logger.InfoTag("Pipeline", "loading models")
	start := time.Now()
	models, err := p.loader(ctx)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindModelInit, "load",
			"failed to load models", err)
	}
	if models == nil || models.Embedder == nil || models.Synthesizer == nil || models.Vocoder == nil {
		return nil, platformerrors.New(platformerrors.KindModelInit, "load",
			"model loader returned an incomplete set")
	}

	p.models = models
	p.logger.InfoTag("Pipeline", "models loaded in %s", time.Since(start).Round(time.Millisecond))
	return p.models, nil
}

// Health reports readiness without forcing a model load.
func (p *Pipeline) Health() HealthStatus {
	p.mu.Lock()
	loaded := p.models != nil
	p.mu.Unlock()

	return HealthStatus{
		ModelsLoaded: loaded,
		SampleRate:   p.cfg.Models.EncoderSampleRate,
	}
}

// ExtractVoicePrint turns an uploaded recording into a speaker voiceprint.
// Nothing is kept server-side; the caller carries the print into later
// synthesis calls.
func (p *Pipeline) ExtractVoicePrint(ctx context.Context, data []byte, nameHint string) (VoicePrint, error) {
	models, err := p.ensureModels(ctx)
	if err != nil {
		return nil, err
	}

	w, err := p.ingestor.Decode(data, nameHint)
	if err != nil {
		return nil, err
	}

	w, err = audio.Resample(w, models.Embedder.SampleRate())
	if err != nil {
		return nil, err
	}

	trimmed := audio.TrimSilence(w, audio.TrimOptions{
		Threshold: p.cfg.Audio.TrimThreshold,
		FrameMs:   p.cfg.Audio.TrimFrameMs,
	})
	minSamples := models.Embedder.SampleRate() * p.cfg.Audio.MinRecordingMs / 1000
	if len(trimmed.Samples) < minSamples {
		return nil, platformerrors.New(platformerrors.KindEmbedding, "extract",
			fmt.Sprintf("recording too quiet or too short: %d usable samples after trimming", len(trimmed.Samples)))
	}

	print, err := models.Embedder.Embed(ctx, trimmed)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindEmbedding, "extract",
			"speaker embedding failed", err)
	}
	if len(print) != models.Embedder.Dimension() {
		return nil, platformerrors.New(platformerrors.KindEmbedding, "extract",
			fmt.Sprintf("embedder returned %d values, expected %d", len(print), models.Embedder.Dimension()))
	}

	p.logger.InfoTag("Pipeline", "extracted voiceprint of dimension %d from %.2fs of speech",
		len(print), trimmed.Duration().Seconds())
	return print, nil
}

// Synthesize renders speech for the request's text in the voice described by
// its voiceprint. All-or-nothing: any fatal stage failure fails the request
// exactly once, with no retries. Only the time-stretch stage inside the
// post-processor may degrade instead of failing.
func (p *Pipeline) Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error) {
	if err := req.Normalize(); err != nil {
		return SynthesisResult{}, err
	}

	models, err := p.ensureModels(ctx)
	if err != nil {
		return SynthesisResult{}, err
	}

	// The synthesizer API is batched; this service always submits one pair.
	specs, err := models.Synthesizer.Synthesize(ctx,
		[]string{req.Text}, []VoicePrint{req.VoicePrint})
	if err != nil {
		return SynthesisResult{}, platformerrors.Wrap(platformerrors.KindSynthesis, "synthesize",
			"spectrogram synthesis failed", err)
	}
	if len(specs) != 1 || !specs[0].Valid() {
		return SynthesisResult{}, platformerrors.New(platformerrors.KindSynthesis, "synthesize",
			"synthesizer returned no usable spectrogram")
	}

	raw, err := models.Vocoder.Vocode(ctx, specs[0], VocodeOptions{
		Normalize: true,
		Batched:   true,
	})
	if err != nil {
		return SynthesisResult{}, platformerrors.Wrap(platformerrors.KindSynthesis, "synthesize",
			"vocoding failed", err)
	}

	out := p.post.Process(raw, req.Speed)
	if out.Empty() {
		return SynthesisResult{}, platformerrors.New(platformerrors.KindSynthesis, "synthesize",
			"synthesized audio was empty after post-processing")
	}

	p.logger.InfoTag("Pipeline", "synthesized %.2fs of audio for %d chars (speed %.2f)",
		out.Duration().Seconds(), len(req.Text), req.Speed)
	return SynthesisResult{Waveform: out}, nil
}
