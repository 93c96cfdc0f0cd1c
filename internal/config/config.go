// Package config provides the configuration schema and loader for the
// novel-reader server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file with [Load]; environment variables override file values.
type Config struct {
	Server ServerConfig `yaml:"server"`
	TTS    TTSConfig    `yaml:"tts"`
	Player PlayerConfig `yaml:"player"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr" env:"READER_LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"READER_LOG_LEVEL"`
}

// TTSConfig points the reader at its speech backends. The primary backend
// carries the load; fallbacks are tried in order when the primary's circuit
// opens.
type TTSConfig struct {
	// BaseURL is the primary TTS service endpoint (e.g., "http://localhost:5002").
	BaseURL string `yaml:"base_url" env:"READER_TTS_BASE_URL"`

	// FallbackURLs lists additional TTS endpoints tried when the primary fails.
	FallbackURLs []string `yaml:"fallback_urls" env:"READER_TTS_FALLBACK_URLS"`

	// Retries is the number of synthesis attempts per sentence.
	Retries int `yaml:"retries" env:"READER_TTS_RETRIES"`

	// Backoff is the delay between synthesis attempts.
	Backoff time.Duration `yaml:"backoff" env:"READER_TTS_BACKOFF"`

	// AttemptTimeout bounds a single synthesis HTTP round trip.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"READER_TTS_ATTEMPT_TIMEOUT"`
}

// PlayerConfig tunes playback timing.
type PlayerConfig struct {
	// AckTimeout bounds the listener's play-handoff acknowledgement.
	AckTimeout time.Duration `yaml:"ack_timeout" env:"READER_PLAYER_ACK_TIMEOUT"`

	// ProviderTimeout bounds a single content fetch from the provider.
	ProviderTimeout time.Duration `yaml:"provider_timeout" env:"READER_PLAYER_PROVIDER_TIMEOUT"`
}

// Default returns a Config with sensible local-development values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		TTS: TTSConfig{
			BaseURL:        "http://localhost:5002",
			Retries:        5,
			Backoff:        800 * time.Millisecond,
			AttemptTimeout: 20 * time.Second,
		},
		Player: PlayerConfig{
			AckTimeout:      10 * time.Second,
			ProviderTimeout: 10 * time.Second,
		},
	}
}
