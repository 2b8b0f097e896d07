package client

import (
	"errors"
	"time"

	"github.com/defistate/reserve-ledger-go/engine"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SubscriptionEvent is the wrapper object received from the server.
type SubscriptionEvent = engine.StreamEvent

// Config holds the configuration for the streaming client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint

	// MaxReconnects bounds consecutive failed connection attempts before the
	// client gives up and reports on Err. Zero retries forever.
	MaxReconnects uint

	// InitialReconnectDelay and MaxReconnectDelay shape the exponential
	// backoff between attempts. Zero values use the package defaults.
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.InitialReconnectDelay < 0 || c.MaxReconnectDelay < 0 {
		return errors.New("config: reconnect delays must not be negative")
	}
	return nil
}
