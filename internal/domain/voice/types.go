package voice

import (
	"math"

	"vocalis-server-go/internal/domain/audio"
	platformerrors "vocalis-server-go/internal/platform/errors"
)

// SpeedEpsilon is the tolerance inside which a requested speed counts as
// exactly 1.0 and no time-stretch runs.
const SpeedEpsilon = 1e-6

// DefaultSpeed is substituted when a synthesis request omits the field.
const DefaultSpeed = 1.0

// VoicePrint is a speaker's identity vector. Its dimension is fixed by the
// deployed encoder and never varies between calls.
type VoicePrint []float32

// MelSpectrogram is a time-by-mel-channel grid produced fresh per request.
type MelSpectrogram struct {
	Frames [][]float32
}

// Valid reports whether the spectrogram is non-empty and rectangular.
func (m MelSpectrogram) Valid() bool {
	if len(m.Frames) == 0 || len(m.Frames[0]) == 0 {
		return false
	}
	width := len(m.Frames[0])
	for _, frame := range m.Frames {
		if len(frame) != width {
			return false
		}
	}
	return true
}

// SynthesisRequest carries one synthesis call's inputs. The caller supplies
// the voiceprint it received from a previous extraction; the server holds no
// session state between the two operations.
type SynthesisRequest struct {
	Text       string
	VoicePrint VoicePrint
	Speed      float64
}

// Normalize substitutes defaults and checks every field before any of them
// enters the pipeline.
func (r *SynthesisRequest) Normalize() error {
	if r.Text == "" {
		return platformerrors.New(platformerrors.KindValidation, "synthesize",
			"text is required")
	}
	if len(r.VoicePrint) == 0 {
		return platformerrors.New(platformerrors.KindValidation, "synthesize",
			"speaker voiceprint is required")
	}
	if r.Speed == 0 {
		r.Speed = DefaultSpeed
	}
	if r.Speed < 0 || math.IsNaN(r.Speed) || math.IsInf(r.Speed, 0) {
		return platformerrors.New(platformerrors.KindValidation, "synthesize",
			"speed must be a positive number")
	}
	return nil
}

// StretchRequested reports whether the speed differs enough from 1.0 for the
// stretch stage to run. A hair of slack keeps speeds at exactly 1.0±1e-6 on
// the no-stretch side despite float64 rounding of the sum.
func (r SynthesisRequest) StretchRequested() bool {
	return math.Abs(r.Speed-1.0) > SpeedEpsilon+1e-12
}

// SynthesisResult is the finished output waveform at the vocoder's native
// sample rate.
type SynthesisResult struct {
	Waveform audio.Waveform
}

// HealthStatus reports service readiness for the status endpoint.
type HealthStatus struct {
	ModelsLoaded bool
	SampleRate   int
}
