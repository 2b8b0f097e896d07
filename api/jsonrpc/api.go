package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// Namespace is the namespace under which the ledger API is registered.
	Namespace = "ledger"
	// StateSubscriptionMethod is passed to <namespace>_subscribe to open the state stream.
	StateSubscriptionMethod = "subscribeState"

	subscriptionBuffer = 16
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Ledger is the subset of *ledger.Ledger the API exposes.
type Ledger interface {
	Deposit(ctx context.Context, tokens uint64) (engine.ReserveState, error)
	Withdraw(ctx context.Context, tokens uint64) (engine.ReserveState, error)
	Seed(ctx context.Context, seed engine.ReserveState) (engine.ReserveState, error)
	QueryState(ctx context.Context) (engine.ReserveState, error)
	SubscribeState(ch chan<- engine.ReserveState) event.Subscription
}

// TokensRequest is the parameter object of ledger_deposit and ledger_withdraw.
// The tokens key is required; an explicit zero is accepted.
type TokensRequest struct {
	Tokens uint64 `json:"tokens"`
}

// UnmarshalJSON rejects objects without a tokens key. The rpc server reports
// the failure as an invalid params error (CodeInvalidParams).
func (r *TokensRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tokens *uint64 `json:"tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Tokens == nil {
		return errors.New(`missing required field "tokens"`)
	}
	r.Tokens = *raw.Tokens
	return nil
}

// API is registered with an rpc.Server under Namespace.
// Exported methods become ledger_deposit, ledger_withdraw, ledger_seed,
// ledger_state and the subscribeState subscription.
type API struct {
	ledger Ledger
	logger Logger
}

// NewAPI creates the RPC receiver for l.
func NewAPI(l Ledger, logger Logger) *API {
	return &API{ledger: l, logger: logger}
}

// NewServer creates an rpc.Server with the ledger API registered.
func NewServer(l Ledger, logger Logger) (*rpc.Server, error) {
	if l == nil {
		return nil, errors.New("jsonrpc: ledger is required")
	}
	if logger == nil {
		return nil, errors.New("jsonrpc: logger is required")
	}

	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, NewAPI(l, logger)); err != nil {
		return nil, fmt.Errorf("failed to register API: %w", err)
	}
	return server, nil
}

// NewHTTPHandler serves JSON-RPC over plain HTTP POST and upgrades WebSocket
// requests, which are required for subscriptions.
func NewHTTPHandler(server *rpc.Server, allowedOrigins []string) http.Handler {
	ws := server.WebsocketHandler(allowedOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			ws.ServeHTTP(w, r)
			return
		}
		server.ServeHTTP(w, r)
	})
}

func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// Deposit applies a deposit and returns a receipt tagged "deposit".
func (api *API) Deposit(ctx context.Context, req TokensRequest) (*engine.Receipt, error) {
	if _, err := api.ledger.Deposit(ctx, req.Tokens); err != nil {
		return nil, toRPCError(err)
	}
	return &engine.Receipt{Action: engine.ActionDeposit, Tokens: req.Tokens}, nil
}

// Withdraw applies a withdrawal and returns a receipt tagged "withdraw".
func (api *API) Withdraw(ctx context.Context, req TokensRequest) (*engine.Receipt, error) {
	if _, err := api.ledger.Withdraw(ctx, req.Tokens); err != nil {
		return nil, toRPCError(err)
	}
	return &engine.Receipt{Action: engine.ActionWithdraw, Tokens: req.Tokens}, nil
}

// Seed writes the initial reserves of an uninitialized pool.
func (api *API) Seed(ctx context.Context, seed engine.ReserveState) (*engine.Receipt, error) {
	if _, err := api.ledger.Seed(ctx, seed); err != nil {
		return nil, toRPCError(err)
	}
	return &engine.Receipt{Action: engine.ActionSeed, Tokens: seed.TokenReserve}, nil
}

// State returns the full reserve record.
func (api *API) State(ctx context.Context) (engine.ReserveState, error) {
	state, err := api.ledger.QueryState(ctx)
	if err != nil {
		return engine.ReserveState{}, toRPCError(err)
	}
	return state, nil
}

// SubscribeState streams the reserve record: first the current value, then
// every persisted change.
func (api *API) SubscribeState(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	// Subscribe before reading so no transition falls between the two.
	states := make(chan engine.ReserveState, subscriptionBuffer)
	feedSub := api.ledger.SubscribeState(states)

	current, err := api.ledger.QueryState(ctx)
	if err != nil {
		feedSub.Unsubscribe()
		return nil, toRPCError(err)
	}

	rpcSub := notifier.CreateSubscription()
	go func() {
		defer feedSub.Unsubscribe()

		if err := notifyState(notifier, rpcSub.ID, current); err != nil {
			api.logger.Warn("Error notifying subscriber", "subscription", rpcSub.ID, "error", err)
			return
		}
		for {
			select {
			case state := <-states:
				if err := notifyState(notifier, rpcSub.ID, state); err != nil {
					api.logger.Warn("Error notifying subscriber", "subscription", rpcSub.ID, "error", err)
					return
				}
			case <-rpcSub.Err():
				api.logger.Debug("State subscriber left", "subscription", rpcSub.ID)
				return
			case <-feedSub.Err():
				return
			}
		}
	}()

	return rpcSub, nil
}

func notifyState(notifier *rpc.Notifier, id rpc.ID, state engine.ReserveState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return notifier.Notify(id, &engine.StreamEvent{
		Type:    engine.StreamEventFull,
		Payload: payload,
		SentAt:  time.Now().UnixNano(),
	})
}
