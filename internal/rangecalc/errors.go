package rangecalc

import "errors"

// Errors returned by the range calculation. All of them are raised before any
// funds move.
var (
	ErrInvalidWidth           = errors.New("invalid width")
	ErrInvalidPriceRange      = errors.New("invalid price range")
	ErrInvalidTickRange       = errors.New("invalid tick range")
	ErrExcessiveTickDeviation = errors.New("tick deviation too high")
	ErrArithmeticDomain       = errors.New("arithmetic domain error")
)

// Reason maps an error to a short stable code, used for metric labels and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWidth):
		return "invalid_width"
	case errors.Is(err, ErrInvalidPriceRange):
		return "invalid_price_range"
	case errors.Is(err, ErrInvalidTickRange):
		return "invalid_tick_range"
	case errors.Is(err, ErrExcessiveTickDeviation):
		return "excessive_tick_deviation"
	case errors.Is(err, ErrArithmeticDomain):
		return "arithmetic_domain"
	default:
		return "other"
	}
}
