package audio

import (
	"fmt"
	"math"
)

// Stretcher changes playback tempo without altering pitch. The capability is
// optional: callers fall back to unstretched audio when no stretcher is
// wired in or a stretch attempt fails.
type Stretcher interface {
	// Stretch compresses (rate > 1) or expands (rate < 1) the waveform's
	// duration by the given factor.
	Stretch(w Waveform, rate float64) (Waveform, error)
}

const (
	stretchWindowMs = 50
	stretchSeekMs   = 10
)

// SOLAStretcher implements waveform-similarity overlap-add time stretching.
// Output length is the input length divided by the rate, up to one analysis
// window of rounding.
type SOLAStretcher struct{}

func NewSOLAStretcher() *SOLAStretcher {
	return &SOLAStretcher{}
}

func (s *SOLAStretcher) Stretch(w Waveform, rate float64) (Waveform, error) {
	if rate <= 0 {
		return Waveform{}, fmt.Errorf("stretch rate %.4f must be positive", rate)
	}
	if w.Empty() || w.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("cannot stretch empty waveform")
	}
	if rate == 1 {
		return w, nil
	}

	win := w.SampleRate * stretchWindowMs / 1000
	if win < 32 {
		win = 32
	}
	if win%2 == 1 {
		win++
	}
	hop := win / 2
	seek := w.SampleRate * stretchSeekMs / 1000

	n := len(w.Samples)
	if n <= win {
		return Waveform{}, fmt.Errorf("input too short to stretch: %d samples", n)
	}

	outLen := int(float64(n) / rate)
	if outLen < 1 {
		outLen = 1
	}

	window := hannWindow(win)
	acc := make([]float32, outLen+win)
	norm := make([]float32, outLen+win)

	overlapAdd := func(outPos, inPos int) {
		for i := 0; i < win; i++ {
			acc[outPos+i] += w.Samples[inPos+i] * window[i]
			norm[outPos+i] += window[i]
		}
	}

	overlapAdd(0, 0)
	prev := 0
	for frame := 1; frame*hop+win <= outLen+win; frame++ {
		target := int(float64(frame*hop) * rate)
		if target > n-win {
			target = n - win
		}

		// The naturally continuing segment preserves phase with what was
		// just written; search near the target for the best match to it.
		natural := prev + hop
		if natural > n-win {
			natural = n - win
		}

		lo := target - seek
		if lo < 0 {
			lo = 0
		}
		hi := target + seek
		if hi > n-win {
			hi = n - win
		}

		best := lo
		bestScore := math.Inf(-1)
		for p := lo; p <= hi; p++ {
			var score float64
			for i := 0; i < hop; i++ {
				score += float64(w.Samples[p+i]) * float64(w.Samples[natural+i])
			}
			if score > bestScore {
				bestScore = score
				best = p
			}
		}

		overlapAdd(frame*hop, best)
		prev = best
	}

	out := make([]float32, outLen)
	for i := range out {
		if norm[i] > 1e-6 {
			out[i] = acc[i] / norm[i]
		} else {
			out[i] = acc[i]
		}
	}

	return Waveform{Samples: out, SampleRate: w.SampleRate}, nil
}

func hannWindow(size int) []float32 {
	window := make([]float32, size)
	for i := range window {
		window[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1))))
	}
	return window
}
