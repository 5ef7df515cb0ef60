package onnx

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/domain/voice"
)

// vocodeChunkFrames bounds how many spectrogram frames go through the graph
// per run when batched execution is requested.
const vocodeChunkFrames = 800

// Vocoder runs the spectrogram-to-waveform graph at its fixed native rate.
type Vocoder struct {
	session    *ort.DynamicAdvancedSession
	sampleRate int
}

func NewVocoder(path string, sampleRate int) (*Vocoder, error) {
	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{"mel"}, []string{"audio"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load vocoder %s: %w", path, err)
	}

	return &Vocoder{
		session:    session,
		sampleRate: sampleRate,
	}, nil
}

func (v *Vocoder) SampleRate() int {
	return v.sampleRate
}

// Vocode converts the spectrogram to audio. With Normalize set the
// spectrogram is scaled to unit peak before inference; with Batched set
// long spectrograms run through the graph in chunks.
func (v *Vocoder) Vocode(ctx context.Context, mel voice.MelSpectrogram, opts voice.VocodeOptions) (audio.Waveform, error) {
	if !mel.Valid() {
		return audio.Waveform{}, fmt.Errorf("invalid spectrogram shape")
	}

	frames := mel.Frames
	if opts.Normalize {
		frames = normalizeFrames(frames)
	}

	chunk := len(frames)
	if opts.Batched && chunk > vocodeChunkFrames {
		chunk = vocodeChunkFrames
	}

	var samples []float32
	for start := 0; start < len(frames); start += chunk {
		end := start + chunk
		if end > len(frames) {
			end = len(frames)
		}
		part, err := v.runChunk(frames[start:end])
		if err != nil {
			return audio.Waveform{}, err
		}
		samples = append(samples, part...)
	}

	return audio.Waveform{Samples: samples, SampleRate: v.sampleRate}, nil
}

func (v *Vocoder) runChunk(frames [][]float32) ([]float32, error) {
	channels := len(frames[0])
	flat := make([]float32, 0, len(frames)*channels)
	for _, frame := range frames {
		flat = append(flat, frame...)
	}

	input, err := ort.NewTensor([]int64{1, int64(len(frames)), int64(channels)}, flat)
	if err != nil {
		return nil, fmt.Errorf("build mel tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := v.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run vocoder: %w", err)
	}
	wavTensor := outputs[0].(*ort.Tensor[float32])
	defer wavTensor.Destroy()

	data := wavTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func normalizeFrames(frames [][]float32) [][]float32 {
	var peak float32
	for _, frame := range frames {
		for _, v := range frame {
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		return frames
	}

	out := make([][]float32, len(frames))
	for i, frame := range frames {
		scaled := make([]float32, len(frame))
		for j, v := range frame {
			scaled[j] = v / peak
		}
		out[i] = scaled
	}
	return out
}

func (v *Vocoder) Close() error {
	return v.session.Destroy()
}
