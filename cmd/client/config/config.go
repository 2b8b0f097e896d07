package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultURL           = "ws://localhost:8545"
	DefaultTimeout       = 10 * time.Second
	DefaultBufferSize    = 100
	DefaultMaxReconnects = 0
	DefaultLogLevel      = "info"

	envPrefix = "LEDGER_CLIENT"
)

// ClientConfig is the configuration of the ledger CLI.
type ClientConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	BufferSize    uint          `mapstructure:"buffer_size"`
	MaxReconnects uint          `mapstructure:"max_reconnects"`
	LogLevel      string        `mapstructure:"log_level"`
}

// SlogLevel parses LogLevel. Validate has already rejected unknown values.
func (c *ClientConfig) SlogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// LoadConfig reads the file at path, when path is non-empty, and applies
// LEDGER_CLIENT_* environment overrides.
func LoadConfig(path string) (*ClientConfig, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"url":            DefaultURL,
		"timeout":        DefaultTimeout,
		"buffer_size":    DefaultBufferSize,
		"max_reconnects": DefaultMaxReconnects,
		"log_level":      DefaultLogLevel,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

// Validate checks the loaded configuration.
func (c *ClientConfig) Validate() error {
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid url %q", c.URL)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if c.Timeout <= 0 {
		return errors.New("invalid timeout")
	}
	if c.BufferSize == 0 {
		return errors.New("invalid buffer_size")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}
