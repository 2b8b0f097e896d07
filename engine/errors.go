package engine

import "errors"

var (
	// ErrStorageUnavailable is returned when the backing store fails for any
	// reason other than the record being absent.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrArithmeticOverflow is returned when an intermediate product or sum
	// leaves the uint64 domain.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrArithmeticUnderflow is returned when a subtraction would go negative.
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	// ErrDivisionByZero is returned when a reserve used as a divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrAlreadySeeded is returned by Seed once the record holds reserves.
	ErrAlreadySeeded = errors.New("reserve state already seeded")
	// ErrInvalidPriceRange is returned by Seed when min exceeds max.
	ErrInvalidPriceRange = errors.New("invalid price range")
)

// ErrorKind returns a stable name for the sentinel err wraps, or "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrArithmeticUnderflow):
		return "arithmetic_underflow"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, ErrAlreadySeeded):
		return "already_seeded"
	case errors.Is(err, ErrInvalidPriceRange):
		return "invalid_price_range"
	default:
		return "internal"
	}
}
