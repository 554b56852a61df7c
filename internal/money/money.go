package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more than two decimal places")
)

// Parse converts a user-supplied amount string into a fixed-point decimal.
// Balances and transfer amounts carry at most two fractional digits; floats
// never enter the money path.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.Exponent() < -2 {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value, nil
}

// Format renders an amount with exactly two fractional digits.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}
