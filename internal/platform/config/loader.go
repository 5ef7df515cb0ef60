package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional yaml file layered over the
// defaults, then applies environment variable overrides.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given config file path. An empty path
// means defaults plus environment only.
func NewLoader(path string) *Loader {
	return &Loader{
		path:      path,
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Load produces the effective configuration.
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		// Missing .env is fine; system environment still applies.
		_ = godotenv.Load()
	}

	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", l.path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VOCALIS_SERVER_IP"); v != "" {
		cfg.Server.IP = v
	}
	if v := os.Getenv("VOCALIS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOCALIS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOCALIS_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Models.EmbeddingDim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", cfg.Models.EmbeddingDim)
	}
	if cfg.Models.EncoderSampleRate <= 0 || cfg.Models.VocoderSampleRate <= 0 {
		return fmt.Errorf("invalid model sample rates %d/%d",
			cfg.Models.EncoderSampleRate, cfg.Models.VocoderSampleRate)
	}
	if cfg.Audio.TrimThreshold <= 0 || cfg.Audio.TrimThreshold >= 1 {
		return fmt.Errorf("trim threshold %.3f outside (0, 1)", cfg.Audio.TrimThreshold)
	}
	if cfg.Audio.TrimFrameMs <= 0 {
		return fmt.Errorf("invalid trim frame %dms", cfg.Audio.TrimFrameMs)
	}
	return nil
}
