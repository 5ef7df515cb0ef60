package voice

import (
	"context"

	"vocalis-server-go/internal/domain/audio"
)

// Embedder turns a trimmed, normalized waveform into a fixed-dimension
// voiceprint. Implementations are opaque numeric models; the pipeline only
// relies on the declared sample rate and dimension.
type Embedder interface {
	// SampleRate is the rate the embedder expects input at.
	SampleRate() int
	// Dimension is the voiceprint length D.
	Dimension() int
	Embed(ctx context.Context, w audio.Waveform) (VoicePrint, error)
}

// Synthesizer renders mel spectrograms from text/voiceprint pairs. The API
// is batched even though the orchestrator always submits a batch of one.
type Synthesizer interface {
	Synthesize(ctx context.Context, texts []string, prints []VoicePrint) ([]MelSpectrogram, error)
}

// VocodeOptions carry the vocoder's execution flags.
type VocodeOptions struct {
	// Normalize asks the vocoder to normalize spectrogram amplitude
	// internally before inference.
	Normalize bool
	// Batched allows chunked internal execution for long spectrograms.
	Batched bool
}

// Vocoder converts a mel spectrogram to a waveform at its fixed native rate.
type Vocoder interface {
	SampleRate() int
	Vocode(ctx context.Context, mel MelSpectrogram, opts VocodeOptions) (audio.Waveform, error)
}

// ModelSet bundles the three loaded model handles. After a successful load
// the set is immutable, shared, process-wide state.
type ModelSet struct {
	Embedder    Embedder
	Synthesizer Synthesizer
	Vocoder     Vocoder
}

// ModelLoader performs the expensive one-time model load.
type ModelLoader func(ctx context.Context) (*ModelSet, error)
