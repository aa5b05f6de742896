// Package config loads orchestrator configuration from environment
// variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all orchestrator configuration.
type Config struct {
	Root       RootConfig
	Logging    LogConfig
	Introspect IntrospectConfig
	RateLimit  RateLimitConfig
}

// RootConfig describes the root component and resolver backing.
type RootConfig struct {
	URL         string `envconfig:"ROOT_URL" default:"file://root"`
	ManifestDir string `envconfig:"MANIFEST_DIR" default:"./manifests"`
	// DefaultRunner names the runner used by programs that do not pick
	// one through their environment.
	DefaultRunner string `envconfig:"DEFAULT_RUNNER" default:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// IntrospectConfig holds the introspection HTTP surface configuration.
type IntrospectConfig struct {
	Enabled bool   `envconfig:"INTROSPECT_ENABLED" default:"true"`
	Host    string `envconfig:"INTROSPECT_HOST" default:"0.0.0.0"`
	Port    string `envconfig:"INTROSPECT_PORT" default:"8321"`
}

// RateLimitConfig holds rate limiting for the introspection surface.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from COMPONENTD_-prefixed environment
// variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("componentd", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns the
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Root: RootConfig{
			URL:           "file://root",
			ManifestDir:   "./manifests",
			DefaultRunner: "host",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Introspect: IntrospectConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    "8321",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
