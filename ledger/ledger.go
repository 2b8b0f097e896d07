package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/defistate/reserve-ledger-go/calculator"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/defistate/reserve-ledger-go/store"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// StateKey is the fixed key the reserve record is persisted under.
var StateKey = []byte("reserve/state")

// DefaultPublishTimeout bounds a single Publish call when Config.PublishTimeout is zero.
const DefaultPublishTimeout = 5 * time.Second

// Config holds the dependencies of a Ledger.
type Config struct {
	Store    store.Store
	Logger   Logger
	Registry prometheus.Registerer

	// Publisher is optional. When nil no events are emitted.
	Publisher Publisher

	// PublishTimeout bounds each Publish call, retries included. Publishing
	// runs under the ledger lock, so while the publisher is failing every
	// transition can take up to PublishTimeout longer.
	PublishTimeout time.Duration
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("config: Store is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.PublishTimeout < 0 {
		return errors.New("config: PublishTimeout must not be negative")
	}
	return nil
}

// Ledger owns the reserve record of a single pool and applies deposit and
// withdraw transitions to it.
//
// Each operation is one load, compute, store sequence. Operations on the same
// Ledger are serialized; two Ledgers sharing one store are not coordinated.
type Ledger struct {
	mu             sync.Mutex
	store          store.Store
	logger         Logger
	metrics        *Metrics
	publisher      Publisher
	publishTimeout time.Duration
	feed           event.Feed
}

// New constructs a Ledger from cfg.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout == 0 {
		publishTimeout = DefaultPublishTimeout
	}

	return &Ledger{
		store:          cfg.Store,
		logger:         cfg.Logger,
		metrics:        NewMetrics(cfg.Registry),
		publisher:      cfg.Publisher,
		publishTimeout: publishTimeout,
	}, nil
}

// ReadState loads the record. A record that was never written reads as the
// zero state, and reading does not persist it.
func (l *Ledger) ReadState(ctx context.Context) (engine.ReserveState, error) {
	raw, err := l.store.Get(ctx, StateKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.ReserveState{}, nil
		}
		return engine.ReserveState{}, fmt.Errorf("%w: load reserve state: %v", engine.ErrStorageUnavailable, err)
	}

	var state engine.ReserveState
	if err := json.Unmarshal(raw, &state); err != nil {
		return engine.ReserveState{}, fmt.Errorf("%w: decode reserve state: %v", engine.ErrStorageUnavailable, err)
	}
	return state, nil
}

// QueryState is the read-only query. It never mutates the record.
func (l *Ledger) QueryState(ctx context.Context) (engine.ReserveState, error) {
	return l.ReadState(ctx)
}

// Deposit adds tokens to the token reserve and the proportional share to the
// base reserve, persists the result and returns it.
func (l *Ledger) Deposit(ctx context.Context, tokens uint64) (engine.ReserveState, error) {
	return l.apply(ctx, engine.ActionDeposit, tokens, func(state engine.ReserveState) (engine.ReserveState, error) {
		next, _, err := calculator.Deposit(state, tokens)
		return next, err
	})
}

// Withdraw removes tokens from the base reserve and the proportional share
// from the token reserve, persists the result and returns it.
func (l *Ledger) Withdraw(ctx context.Context, tokens uint64) (engine.ReserveState, error) {
	return l.apply(ctx, engine.ActionWithdraw, tokens, func(state engine.ReserveState) (engine.ReserveState, error) {
		next, _, err := calculator.Withdraw(state, tokens)
		return next, err
	})
}

// Seed writes the initial record of a pool. It only succeeds while the stored
// record is still all-zero, and both reserves of seed must be non-zero.
// The price range is stored as given; it is not enforced by any transition.
func (l *Ledger) Seed(ctx context.Context, seed engine.ReserveState) (engine.ReserveState, error) {
	return l.apply(ctx, engine.ActionSeed, seed.TokenReserve, func(state engine.ReserveState) (engine.ReserveState, error) {
		if !state.IsZero() {
			return engine.ReserveState{}, engine.ErrAlreadySeeded
		}
		if seed.TokenReserve == 0 || seed.BaseReserve == 0 {
			return engine.ReserveState{}, fmt.Errorf("%w: seed reserves must both be non-zero", engine.ErrDivisionByZero)
		}
		if seed.PriceRangeMin > seed.PriceRangeMax {
			return engine.ReserveState{}, fmt.Errorf("%w: min %d > max %d", engine.ErrInvalidPriceRange, seed.PriceRangeMin, seed.PriceRangeMax)
		}
		return seed, nil
	})
}

// SubscribeState delivers every persisted record to ch until the returned
// subscription is unsubscribed. Records are sent under the ledger lock: a
// subscriber whose buffer is full stalls every Deposit, Withdraw and Seed
// until it reads or unsubscribes.
func (l *Ledger) SubscribeState(ch chan<- engine.ReserveState) event.Subscription {
	return l.feed.Subscribe(ch)
}

// apply runs one load-compute-store sequence under the ledger lock.
// Nothing is written unless transition succeeds.
func (l *Ledger) apply(
	ctx context.Context,
	action engine.Action,
	tokens uint64,
	transition func(engine.ReserveState) (engine.ReserveState, error),
) (result engine.ReserveState, err error) {
	timer := prometheus.NewTimer(l.metrics.duration.WithLabelValues(string(action)))
	defer timer.ObserveDuration()
	defer func() { l.metrics.observeResult(action, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	before, err := l.ReadState(ctx)
	if err != nil {
		l.logger.Error("Failed to load reserve state", "action", action, "error", err)
		return engine.ReserveState{}, err
	}

	after, err := transition(before)
	if err != nil {
		l.logger.Debug("Transition rejected",
			"action", action,
			"tokens", tokens,
			"token_reserve", before.TokenReserve,
			"base_reserve", before.BaseReserve,
			"error", err,
		)
		return engine.ReserveState{}, err
	}

	if err := l.writeState(ctx, after); err != nil {
		l.logger.Error("Failed to persist reserve state", "action", action, "error", err)
		return engine.ReserveState{}, err
	}

	l.logger.Info("Reserve state updated",
		"action", action,
		"tokens", tokens,
		"token_reserve", after.TokenReserve,
		"base_reserve", after.BaseReserve,
	)
	l.metrics.observeState(after)
	l.feed.Send(after)
	l.publish(ctx, action, tokens, before, after)

	return after, nil
}

func (l *Ledger) writeState(ctx context.Context, state engine.ReserveState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode reserve state: %w", err)
	}
	if err := l.store.Set(ctx, StateKey, raw); err != nil {
		return fmt.Errorf("%w: store reserve state: %v", engine.ErrStorageUnavailable, err)
	}
	return nil
}

// publish hands the event to the publisher. The transition is already
// persisted, so a failure here is logged and counted but not returned.
func (l *Ledger) publish(ctx context.Context, action engine.Action, tokens uint64, before, after engine.ReserveState) {
	if l.publisher == nil {
		return
	}

	ev := engine.Event{
		ID:        uuid.NewString(),
		Action:    action,
		Tokens:    tokens,
		Before:    before,
		After:     after,
		Timestamp: time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(publishCtx, ev); err != nil {
		l.metrics.publishFailure.Inc()
		l.logger.Warn("Failed to publish ledger event", "event_id", ev.ID, "action", action, "error", err)
	}
}
