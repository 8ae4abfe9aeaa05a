package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every stored amount carries.
const Scale int32 = 2

var (
	ErrEmptyAmount    = errors.New("amount is required")
	ErrInvalidAmount  = errors.New("invalid amount format")
	ErrTooManyDecimal = errors.New("amount has more than 2 decimal places")
)

var hundred = decimal.NewFromInt(100)

// Parse converts a human-readable amount string to a decimal.
// Amounts with more than Scale decimal places are rejected rather than rounded,
// so "10.005" is an error while "10.5" and "10.50" are equal.
func Parse(amountStr string) (decimal.Decimal, error) {
	amountStr = strings.TrimSpace(amountStr)
	if amountStr == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}

	if !HasScale(d) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrTooManyDecimal, amountStr)
	}

	return d, nil
}

// HasScale reports whether d is representable at Scale without rounding.
func HasScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// Round rounds half away from zero at Scale ("round half up" for positive amounts).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Format renders d with exactly Scale decimal places, e.g. "90.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Percent returns part/whole*100 rounded at Scale. A zero whole yields zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, Scale)
}

// ApplyRate returns base*rate/100 rounded at Scale.
func ApplyRate(base, ratePercent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(ratePercent).Div(hundred))
}

// Sum adds all amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
