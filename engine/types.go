package engine

import (
	"encoding/json"
	"time"
)

// Action names the transition a Receipt or Event describes.
type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionSeed     Action = "seed"
)

// ReserveState is the single record held by the ledger.
// The JSON layout is also the persisted layout, so field tags must not change.
type ReserveState struct {
	TokenReserve uint64 `json:"token_reserve"`
	BaseReserve  uint64 `json:"base_reserve"`

	// PriceRangeMin and PriceRangeMax are carried with the record but are
	// never read by deposit or withdraw.
	PriceRangeMin uint64 `json:"price_range_min"`
	PriceRangeMax uint64 `json:"price_range_max"`
}

// IsZero reports whether the record is still in its never-initialized shape.
func (s ReserveState) IsZero() bool {
	return s == ReserveState{}
}

// Receipt is the confirmation returned for a mutating request.
// It intentionally does not echo the new state; callers query it separately.
type Receipt struct {
	Action Action `json:"action"`
	Tokens uint64 `json:"tokens"`
}

// Event describes one persisted transition.
type Event struct {
	ID        string       `json:"id"`
	Action    Action       `json:"action"`
	Tokens    uint64       `json:"tokens"`
	Before    ReserveState `json:"before"`
	After     ReserveState `json:"after"`
	Timestamp time.Time    `json:"timestamp"`
}

// StreamEventFull is the only frame type currently sent on the state stream:
// every frame carries the complete record.
const StreamEventFull = "full"

// StreamEvent is the wrapper object sent to state subscribers.
type StreamEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}
