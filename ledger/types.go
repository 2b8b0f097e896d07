package ledger

import (
	"context"

	"github.com/defistate/reserve-ledger-go/engine"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher receives an Event after each persisted transition.
type Publisher interface {
	Publish(ctx context.Context, event engine.Event) error
}
