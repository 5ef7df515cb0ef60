package onnx

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"vocalis-server-go/internal/domain/voice"
)

// Synthesizer runs the text-to-spectrogram graph. Text is indexed one rune
// at a time; the graph owns the rest of the text frontend.
type Synthesizer struct {
	session     *ort.DynamicAdvancedSession
	melChannels int
}

func NewSynthesizer(path string, melChannels int) (*Synthesizer, error) {
	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{"text_ids", "speaker_embedding"}, []string{"mel"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load synthesizer %s: %w", path, err)
	}

	return &Synthesizer{
		session:     session,
		melChannels: melChannels,
	}, nil
}

// Synthesize renders one spectrogram per (text, voiceprint) pair. Pairs run
// through the graph one at a time; the batch contract is in the signature,
// not the execution.
func (s *Synthesizer) Synthesize(ctx context.Context, texts []string, prints []voice.VoicePrint) ([]voice.MelSpectrogram, error) {
	if len(texts) != len(prints) {
		return nil, fmt.Errorf("batch mismatch: %d texts, %d voiceprints", len(texts), len(prints))
	}

	specs := make([]voice.MelSpectrogram, 0, len(texts))
	for i := range texts {
		spec, err := s.synthesizeOne(texts[i], prints[i])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s *Synthesizer) synthesizeOne(text string, print voice.VoicePrint) (voice.MelSpectrogram, error) {
	if text == "" {
		return voice.MelSpectrogram{}, fmt.Errorf("cannot synthesize empty text")
	}

	runes := []rune(text)
	ids := make([]int64, len(runes))
	for i, r := range runes {
		ids[i] = int64(r)
	}

	textTensor, err := ort.NewTensor([]int64{1, int64(len(ids))}, ids)
	if err != nil {
		return voice.MelSpectrogram{}, fmt.Errorf("build text tensor: %w", err)
	}
	defer textTensor.Destroy()

	embTensor, err := ort.NewTensor([]int64{1, int64(len(print))}, []float32(print))
	if err != nil {
		return voice.MelSpectrogram{}, fmt.Errorf("build embedding tensor: %w", err)
	}
	defer embTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{textTensor, embTensor}, outputs); err != nil {
		return voice.MelSpectrogram{}, fmt.Errorf("run synthesizer: %w", err)
	}
	melTensor := outputs[0].(*ort.Tensor[float32])
	defer melTensor.Destroy()

	data := melTensor.GetData()
	if len(data) == 0 || len(data)%s.melChannels != 0 {
		return voice.MelSpectrogram{}, fmt.Errorf("synthesizer emitted %d values, not a multiple of %d channels",
			len(data), s.melChannels)
	}

	frames := len(data) / s.melChannels
	spec := voice.MelSpectrogram{Frames: make([][]float32, frames)}
	for f := 0; f < frames; f++ {
		frame := make([]float32, s.melChannels)
		copy(frame, data[f*s.melChannels:(f+1)*s.melChannels])
		spec.Frames[f] = frame
	}
	return spec, nil
}

func (s *Synthesizer) Close() error {
	return s.session.Destroy()
}
