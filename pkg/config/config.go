// Package config defines the YAML configuration for the breathscan
// service and CLI.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the top-level configuration. Zero values fall back to
// DefaultConfig during Load.
type Config struct {
	// Model holds the classifier artifact settings.
	Model ModelConfig `yaml:"model"`
	// Audio holds the preprocessing policy.
	Audio AudioConfig `yaml:"audio"`
	// Server holds the HTTP boundary settings.
	Server ServerConfig `yaml:"server"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// ModelConfig locates the inference artifacts.
type ModelConfig struct {
	// Path is the ONNX classifier file.
	Path string `yaml:"path"`
	// LabelsPath is the JSON label taxonomy file.
	LabelsPath string `yaml:"labels_path"`
	// RuntimeLibrary optionally points at the onnxruntime shared
	// library. Empty uses the platform default search path.
	RuntimeLibrary string `yaml:"runtime_library"`
}

// AudioConfig fixes the preprocessing policy. These must match the
// policy the deployed model was trained with.
type AudioConfig struct {
	// SampleRate is the canonical rate all clips are resampled to.
	SampleRate int `yaml:"sample_rate"`
	// MaxSeconds caps clip duration before feature extraction.
	// Zero disables the cap.
	MaxSeconds float64 `yaml:"max_seconds"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Model: ModelConfig{
			Path:       "models/bronchitis.onnx",
			LabelsPath: "models/labels.json",
		},
		Audio: AudioConfig{
			SampleRate: 22050,
			MaxSeconds: 3.0,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, fills unset fields from DefaultConfig
// and validates the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		applyDefaults(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Model.Path == "" {
		cfg.Model.Path = def.Model.Path
	}
	if cfg.Model.LabelsPath == "" {
		cfg.Model.LabelsPath = def.Model.LabelsPath
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.MaxSeconds == 0 {
		cfg.Audio.MaxSeconds = def.Audio.MaxSeconds
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// Validate checks field ranges. It does not touch the filesystem; the
// artifact paths are probed at load time by the caller.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.MaxSeconds < 0 {
		return fmt.Errorf("config: max_seconds must not be negative, got %g", c.Audio.MaxSeconds)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server addr must not be empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}
