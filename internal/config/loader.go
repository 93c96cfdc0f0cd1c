package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// variable overrides and returns a validated [Config]. A missing file is not
// an error: defaults plus environment variables apply.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fromEnv(Default())
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return fromEnv(cfg)
}

// fromEnv overlays READER_* environment variables and validates.
func fromEnv(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.TTS.BaseURL == "" {
		errs = append(errs, errors.New("tts.base_url must not be empty"))
	}
	if cfg.TTS.Retries < 1 {
		errs = append(errs, fmt.Errorf("tts.retries must be at least 1, got %d", cfg.TTS.Retries))
	}
	if cfg.TTS.Backoff < 0 {
		errs = append(errs, fmt.Errorf("tts.backoff must not be negative, got %s", cfg.TTS.Backoff))
	}
	if cfg.TTS.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tts.attempt_timeout must be positive, got %s", cfg.TTS.AttemptTimeout))
	}
	if cfg.Player.AckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("player.ack_timeout must be positive, got %s", cfg.Player.AckTimeout))
	}
	if cfg.Player.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("player.provider_timeout must be positive, got %s", cfg.Player.ProviderTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
