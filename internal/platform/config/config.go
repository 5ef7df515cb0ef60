package config

// Config is the full server configuration tree.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Models ModelsConfig `yaml:"models"`
	Audio  AudioConfig  `yaml:"audio"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	// MaxUploadBytes bounds recording uploads read into memory.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
}

// ModelsConfig locates the three exported model graphs and pins the numeric
// contracts the pipeline relies on.
type ModelsConfig struct {
	Dir             string `yaml:"dir"`
	EncoderFile     string `yaml:"encoder_file"`
	SynthesizerFile string `yaml:"synthesizer_file"`
	VocoderFile     string `yaml:"vocoder_file"`
	// EmbeddingDim is the voiceprint dimension D the encoder emits.
	EmbeddingDim int `yaml:"embedding_dim"`
	// EncoderSampleRate is the rate the encoder expects its input at.
	EncoderSampleRate int `yaml:"encoder_sample_rate"`
	// VocoderSampleRate is the native rate of vocoder output.
	VocoderSampleRate int `yaml:"vocoder_sample_rate"`
	MelChannels       int `yaml:"mel_channels"`
}

type AudioConfig struct {
	// TrimThreshold is the energy level below which leading/trailing frames
	// count as silence.
	TrimThreshold float64 `yaml:"trim_threshold"`
	// TrimFrameMs is the analysis window for silence trimming.
	TrimFrameMs int `yaml:"trim_frame_ms"`
	// MinRecordingMs is the shortest usable recording after trimming.
	MinRecordingMs int `yaml:"min_recording_ms"`
}
