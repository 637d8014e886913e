// Package config loads runtime settings for the doubao-nodes host: defaults,
// then an optional YAML file, then DOUBAO_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DOUBAO_"

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds host settings. The API key is not part of it; keys are per-call
// node inputs.
type Config struct {
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	ManifestDir string        `yaml:"manifest_dir" env:"MANIFEST_DIR"`
	Listen      string        `yaml:"listen" env:"LISTEN"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string        `yaml:"log_format" env:"LOG_FORMAT"`
	Parallel    int           `yaml:"parallel" env:"PARALLEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:   "https://api.doubao.com",
		Listen:    "127.0.0.1:8188",
		LogLevel:  "info",
		LogFormat: "text",
		Parallel:  4,
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when empty)
// and then with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
		if err != nil {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("%w: parallel must be at least 1, got %d", ErrInvalidConfig, c.Parallel)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return l, nil
}

// Logger builds a slog.Logger writing to w in LogFormat at LogLevel.
// An unparsable level falls back to info.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
