package audio

import (
	"fmt"

	platformerrors "vocalis-server-go/internal/platform/errors"
)

// Resample converts the waveform to the target rate using linear
// interpolation. Matching rates pass through untouched. The conversion is
// deterministic: identical input always yields identical output samples.
func Resample(w Waveform, target int) (Waveform, error) {
	if target <= 0 || w.SampleRate <= 0 {
		return Waveform{}, platformerrors.New(platformerrors.KindResample, "resample",
			fmt.Sprintf("invalid sample rate conversion %d -> %d", w.SampleRate, target))
	}
	if w.SampleRate == target {
		return w, nil
	}
	if w.Empty() {
		return Waveform{SampleRate: target}, nil
	}

	ratio := float64(w.SampleRate) / float64(target)
	outLen := int(float64(len(w.Samples)) * float64(target) / float64(w.SampleRate))
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(w.Samples)-1 {
			out[i] = w.Samples[len(w.Samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = w.Samples[idx]*(1-frac) + w.Samples[idx+1]*frac
	}

	return Waveform{Samples: out, SampleRate: target}, nil
}
