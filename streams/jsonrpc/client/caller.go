package client

import (
	"context"
	"errors"
	"fmt"

	ledgerrpc "github.com/defistate/reserve-ledger-go/api/jsonrpc"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller issues request/response calls against a ledger JSON-RPC endpoint.
// Errors carrying a ledger code are returned wrapping the matching engine
// sentinel, so callers can use errors.Is across the wire.
type Caller struct {
	rpc *rpc.Client
}

// Dial connects to url, which may be an http(s) or ws(s) endpoint.
func Dial(ctx context.Context, url string) (*Caller, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Caller{rpc: c}, nil
}

// NewCaller wraps an existing rpc.Client.
func NewCaller(c *rpc.Client) *Caller {
	return &Caller{rpc: c}
}

// Deposit calls ledger_deposit.
func (c *Caller) Deposit(ctx context.Context, tokens uint64) (*engine.Receipt, error) {
	var receipt engine.Receipt
	if err := c.call(ctx, &receipt, "deposit", ledgerrpc.TokensRequest{Tokens: tokens}); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Withdraw calls ledger_withdraw.
func (c *Caller) Withdraw(ctx context.Context, tokens uint64) (*engine.Receipt, error) {
	var receipt engine.Receipt
	if err := c.call(ctx, &receipt, "withdraw", ledgerrpc.TokensRequest{Tokens: tokens}); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Seed calls ledger_seed.
func (c *Caller) Seed(ctx context.Context, seed engine.ReserveState) (*engine.Receipt, error) {
	var receipt engine.Receipt
	if err := c.call(ctx, &receipt, "seed", seed); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// State calls ledger_state.
func (c *Caller) State(ctx context.Context) (engine.ReserveState, error) {
	var state engine.ReserveState
	if err := c.call(ctx, &state, "state"); err != nil {
		return engine.ReserveState{}, err
	}
	return state, nil
}

// Close terminates the underlying connection.
func (c *Caller) Close() {
	c.rpc.Close()
}

func (c *Caller) call(ctx context.Context, result any, method string, args ...any) error {
	err := c.rpc.CallContext(ctx, result, ledgerrpc.Namespace+"_"+method, args...)
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if sentinel := ledgerrpc.SentinelForCode(rpcErr.ErrorCode()); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, rpcErr.Error())
		}
	}
	return fmt.Errorf("%s_%s: %w", ledgerrpc.Namespace, method, err)
}
