package onnx

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/domain/voice"
)

// Embedder runs the speaker encoder graph: a mono waveform in, a voiceprint
// of fixed dimension out.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	sampleRate int
	dim        int
}

func NewEmbedder(path string, sampleRate, dim int) (*Embedder, error) {
	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{"audio"}, []string{"embedding"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load speaker encoder %s: %w", path, err)
	}

	return &Embedder{
		session:    session,
		sampleRate: sampleRate,
		dim:        dim,
	}, nil
}

func (e *Embedder) SampleRate() int {
	return e.sampleRate
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, w audio.Waveform) (voice.VoicePrint, error) {
	if w.Empty() {
		return nil, fmt.Errorf("embedder received an empty waveform")
	}

	input, err := ort.NewTensor([]int64{1, int64(len(w.Samples))}, w.Samples)
	if err != nil {
		return nil, fmt.Errorf("build audio tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run speaker encoder: %w", err)
	}
	embTensor := outputs[0].(*ort.Tensor[float32])
	defer embTensor.Destroy()

	data := embTensor.GetData()
	if len(data) != e.dim {
		return nil, fmt.Errorf("speaker encoder emitted %d values, expected %d", len(data), e.dim)
	}

	print := make(voice.VoicePrint, e.dim)
	copy(print, data)
	return print, nil
}

func (e *Embedder) Close() error {
	return e.session.Destroy()
}
