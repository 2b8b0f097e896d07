package jsonrpc

import (
	"errors"

	"github.com/defistate/reserve-ledger-go/engine"
)

// JSON-RPC error codes. The application codes sit in the "server error" range and
// are stable across releases.
const (
	// CodeInvalidParams is the standard JSON-RPC code the rpc server uses when
	// parameters fail to decode.
	CodeInvalidParams = -32602

	CodeInternal            = -32000
	CodeStorageUnavailable  = -32010
	CodeArithmeticOverflow  = -32011
	CodeArithmeticUnderflow = -32012
	CodeDivisionByZero      = -32013
	CodeAlreadySeeded       = -32014
	CodeInvalidPriceRange   = -32015
)

var codeSentinels = map[int]error{
	CodeStorageUnavailable:  engine.ErrStorageUnavailable,
	CodeArithmeticOverflow:  engine.ErrArithmeticOverflow,
	CodeArithmeticUnderflow: engine.ErrArithmeticUnderflow,
	CodeDivisionByZero:      engine.ErrDivisionByZero,
	CodeAlreadySeeded:       engine.ErrAlreadySeeded,
	CodeInvalidPriceRange:   engine.ErrInvalidPriceRange,
}

// Error is returned by API methods. go-ethereum's rpc package serializes
// ErrorCode and ErrorData into the JSON-RPC error object.
type Error struct {
	Code    int
	Kind    string
	Message string
}

func (e *Error) Error() string          { return e.Message }
func (e *Error) ErrorCode() int         { return e.Code }
func (e *Error) ErrorData() interface{} { return e.Kind }

// toRPCError converts a ledger error into an *Error carrying its code.
func toRPCError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: ErrorCode(err), Kind: engine.ErrorKind(err), Message: err.Error()}
}

// ErrorCode returns the JSON-RPC code for a ledger error.
func ErrorCode(err error) int {
	for code, sentinel := range codeSentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// SentinelForCode returns the ledger sentinel a code stands for, or nil.
func SentinelForCode(code int) error {
	return codeSentinels[code]
}
