package config

// Default returns the configuration used when no file overrides a value.
// The model contract numbers match the exported default model set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:             "0.0.0.0",
			Port:           5000,
			MaxUploadBytes: 50 * 1024 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
		Models: ModelsConfig{
			Dir:               "saved_models/default",
			EncoderFile:       "encoder.onnx",
			SynthesizerFile:   "synthesizer.onnx",
			VocoderFile:       "vocoder.onnx",
			EmbeddingDim:      256,
			EncoderSampleRate: 16000,
			VocoderSampleRate: 16000,
			MelChannels:       80,
		},
		Audio: AudioConfig{
			TrimThreshold:  0.01,
			TrimFrameMs:    20,
			MinRecordingMs: 400,
		},
	}
}
