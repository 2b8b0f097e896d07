package calculator

import (
	"fmt"
	"sync"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/holiman/uint256"
)

// Calculator holds reusable uint256 scratch values so the checked arithmetic
// does not allocate on every call.
// Instances of this struct are NOT safe for concurrent use by themselves.
// They are intended to be managed by the sync.Pool below.
type Calculator struct {
	x       *uint256.Int
	y       *uint256.Int
	divisor *uint256.Int
	result  *uint256.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return &Calculator{
			x:       new(uint256.Int),
			y:       new(uint256.Int),
			divisor: new(uint256.Int),
			result:  new(uint256.Int),
		}
	},
}

func acquire() *Calculator {
	return calculatorPool.Get().(*Calculator)
}

func release(c *Calculator) {
	calculatorPool.Put(c)
}

// Deposit applies a proportional deposit of tokens to state and returns the
// new state together with the base amount credited to the pool.
//
//	base_added    = floor(tokens * base_reserve / token_reserve)
//	token_reserve = token_reserve + tokens
//	base_reserve  = base_reserve + base_added
//
// The input state is never modified; on error the zero state is returned.
func Deposit(state engine.ReserveState, tokens uint64) (engine.ReserveState, uint64, error) {
	c := acquire()
	defer release(c)
	return c.deposit(state, tokens)
}

// Withdraw applies a proportional withdrawal of tokens (denominated in the base
// reserve) and returns the new state together with the token amount removed.
//
//	tokens_removed = floor(tokens * token_reserve / base_reserve)
//	token_reserve  = token_reserve - tokens_removed
//	base_reserve   = base_reserve - tokens
//
// The base side is reduced by the raw input, not by a derived amount. This is
// not the inverse of Deposit.
func Withdraw(state engine.ReserveState, tokens uint64) (engine.ReserveState, uint64, error) {
	c := acquire()
	defer release(c)
	return c.withdraw(state, tokens)
}

// MulDiv returns floor(a * b / d). The product itself must fit in uint64.
func MulDiv(a, b, d uint64) (uint64, error) {
	c := acquire()
	defer release(c)
	return c.mulDiv(a, b, d)
}

// Add returns a + b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	c := acquire()
	defer release(c)
	return c.add(a, b)
}

// Sub returns a - b or ErrArithmeticUnderflow.
func Sub(a, b uint64) (uint64, error) {
	c := acquire()
	defer release(c)
	return c.sub(a, b)
}

func (c *Calculator) deposit(state engine.ReserveState, tokens uint64) (engine.ReserveState, uint64, error) {
	if state.TokenReserve == 0 {
		return engine.ReserveState{}, 0, fmt.Errorf("%w: deposit requires a non-zero token reserve", engine.ErrDivisionByZero)
	}

	baseAdded, err := c.mulDiv(tokens, state.BaseReserve, state.TokenReserve)
	if err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("deposit %d: %w", tokens, err)
	}

	next := state
	if next.TokenReserve, err = c.add(state.TokenReserve, tokens); err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("deposit %d: token reserve: %w", tokens, err)
	}
	if next.BaseReserve, err = c.add(state.BaseReserve, baseAdded); err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("deposit %d: base reserve: %w", tokens, err)
	}

	return next, baseAdded, nil
}

func (c *Calculator) withdraw(state engine.ReserveState, tokens uint64) (engine.ReserveState, uint64, error) {
	if state.BaseReserve == 0 {
		return engine.ReserveState{}, 0, fmt.Errorf("%w: withdraw requires a non-zero base reserve", engine.ErrDivisionByZero)
	}
	if tokens > state.BaseReserve {
		return engine.ReserveState{}, 0, fmt.Errorf("%w: withdraw %d exceeds base reserve %d", engine.ErrArithmeticUnderflow, tokens, state.BaseReserve)
	}

	tokensRemoved, err := c.mulDiv(tokens, state.TokenReserve, state.BaseReserve)
	if err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("withdraw %d: %w", tokens, err)
	}

	next := state
	if next.TokenReserve, err = c.sub(state.TokenReserve, tokensRemoved); err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("withdraw %d: token reserve: %w", tokens, err)
	}
	if next.BaseReserve, err = c.sub(state.BaseReserve, tokens); err != nil {
		return engine.ReserveState{}, 0, fmt.Errorf("withdraw %d: base reserve: %w", tokens, err)
	}

	return next, tokensRemoved, nil
}

func (c *Calculator) mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, engine.ErrDivisionByZero
	}

	c.x.SetUint64(a)
	c.y.SetUint64(b)
	c.result.Mul(c.x, c.y)
	if !c.result.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d", engine.ErrArithmeticOverflow, a, b)
	}

	c.divisor.SetUint64(d)
	c.result.Div(c.result, c.divisor)
	return c.result.Uint64(), nil
}

func (c *Calculator) add(a, b uint64) (uint64, error) {
	c.x.SetUint64(a)
	c.y.SetUint64(b)
	c.result.Add(c.x, c.y)
	if !c.result.IsUint64() {
		return 0, fmt.Errorf("%w: %d + %d", engine.ErrArithmeticOverflow, a, b)
	}
	return c.result.Uint64(), nil
}

func (c *Calculator) sub(a, b uint64) (uint64, error) {
	c.x.SetUint64(a)
	c.y.SetUint64(b)
	if _, underflow := c.result.SubOverflow(c.x, c.y); underflow {
		return 0, fmt.Errorf("%w: %d - %d", engine.ErrArithmeticUnderflow, a, b)
	}
	return c.result.Uint64(), nil
}
