package voice

import (
	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/platform/logging"
)

const outputPeak = 0.99

// PostProcessor finishes raw vocoder output: a pad-then-trim pass against
// chopped endings, peak renormalization, and the optional time-stretch.
type PostProcessor struct {
	trim      audio.TrimOptions
	stretcher audio.Stretcher
	logger    *logging.Logger
}

func NewPostProcessor(trim audio.TrimOptions, stretcher audio.Stretcher, logger *logging.Logger) *PostProcessor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostProcessor{
		trim:      trim,
		stretcher: stretcher,
		logger:    logger,
	}
}

// Process runs the ordered post-processing chain. A failed or unavailable
// stretch is logged and the unstretched audio returned; it never fails the
// request.
func (p *PostProcessor) Process(w audio.Waveform, speed float64) audio.Waveform {
	// Raw vocoder output tends to end abruptly; one second of appended
	// silence gives the trim pass a clean tail to cut back to. The trim
	// itself is the same routine that runs on recordings before embedding.
	padded := audio.Waveform{
		Samples:    append(append([]float32{}, w.Samples...), make([]float32, w.SampleRate)...),
		SampleRate: w.SampleRate,
	}
	trimmed := audio.TrimSilence(padded, p.trim)
	if trimmed.Empty() {
		return trimmed
	}

	normalized := audio.PeakNormalize(trimmed, outputPeak)

	req := SynthesisRequest{Speed: speed}
	if !req.StretchRequested() {
		return normalized
	}

	// Waveforms are mono throughout the pipeline, so no down-mix is needed
	// before stretching.
	if p.stretcher == nil {
		p.logger.WarnTag("Pipeline", "time-stretch unavailable, returning unstretched audio")
		return normalized
	}

	stretched, err := p.stretcher.Stretch(normalized, speed)
	if err != nil {
		p.logger.WarnTag("Pipeline", "time-stretch failed (%v), returning unstretched audio", err)
		return normalized
	}

	return audio.PeakNormalize(stretched, outputPeak)
}
