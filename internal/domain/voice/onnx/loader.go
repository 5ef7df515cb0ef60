package onnx

import (
	"context"
	"path/filepath"

	"vocalis-server-go/internal/domain/voice"
	"vocalis-server-go/internal/platform/config"
	"vocalis-server-go/internal/platform/logging"
)

// Loader builds the pipeline's one-time model loader over the configured
// ONNX graph files.
func Loader(cfg config.ModelsConfig, logger *logging.Logger) voice.ModelLoader {
	if logger == nil {
		logger = logging.Discard()
	}

	return func(ctx context.Context) (*voice.ModelSet, error) {
		if err := initRuntime(); err != nil {
			return nil, err
		}

		embedder, err := NewEmbedder(filepath.Join(cfg.Dir, cfg.EncoderFile),
			cfg.EncoderSampleRate, cfg.EmbeddingDim)
		if err != nil {
			return nil, err
		}

		synthesizer, err := NewSynthesizer(filepath.Join(cfg.Dir, cfg.SynthesizerFile),
			cfg.MelChannels)
		if err != nil {
			embedder.Close()
			return nil, err
		}

		vocoder, err := NewVocoder(filepath.Join(cfg.Dir, cfg.VocoderFile),
			cfg.VocoderSampleRate)
		if err != nil {
			embedder.Close()
			synthesizer.Close()
			return nil, err
		}

		logger.InfoTag("Models", "loaded encoder/synthesizer/vocoder from %s (D=%d, encoder %dHz, vocoder %dHz)",
			cfg.Dir, cfg.EmbeddingDim, cfg.EncoderSampleRate, cfg.VocoderSampleRate)

		return &voice.ModelSet{
			Embedder:    embedder,
			Synthesizer: synthesizer,
			Vocoder:     vocoder,
		}, nil
	}
}
