// Package amount converts between base units and whole-token decimal
// strings. One token is 10^Decimals base units.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Decimals is the number of fractional digits in a token.
const Decimals = 9

// Parse reads a non-negative token amount such as "1.5" and returns it in
// base units. More than Decimals fractional digits is an error.
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, invalid(fmt.Sprintf("%q is not a number", s))
	}
	if d.IsNegative() {
		return 0, invalid("must not be negative")
	}
	units := d.Shift(Decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, invalid(fmt.Sprintf("at most %d decimal places", Decimals))
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s: %w", s, model.ErrNumericalOverflow)
	}
	return bi.Uint64(), nil
}

// Format renders base units as a token amount without trailing zeros.
func Format(units uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -Decimals).String()
}

func invalid(msg string) error {
	return &model.ValidationError{Errors: []model.FieldError{{Field: "amount", Message: msg}}}
}
