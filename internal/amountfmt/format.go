// Package amountfmt renders atomic token amounts as human-readable decimal
// strings, shared by the chain-I/O balance query (§4.8) and the broker's
// receipt formatting (§4.6.4) so both follow the exact same rule: no
// scientific notation, at least one fractional digit, trailing zeros
// trimmed but the leading zero in the integer part kept.
package amountfmt

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrTooPrecise is returned by ParseToAtomic when amount carries more
// fractional precision than the given decimals support.
var ErrTooPrecise = errors.New("amount has more precision than supported")

// FormatAtomic renders atomic (an integer amount in the token's smallest
// unit) as a decimal string with the given number of decimals.
func FormatAtomic(atomic *big.Int, decimals int) string {
	neg := atomic.Sign() < 0
	abs := new(big.Int).Abs(atomic)

	digits := abs.String()
	for len(digits) <= decimals {
		digits = "0" + digits
	}

	whole := digits[:len(digits)-decimals]
	frac := digits[len(digits)-decimals:]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatAtomicInt64 is a convenience wrapper over FormatAtomic for callers
// holding a plain int64.
func FormatAtomicInt64(atomic int64, decimals int) string {
	return FormatAtomic(big.NewInt(atomic), decimals)
}

// ParseToAtomic converts a decimal-USDC string ("0.1") into atomic units
// (100000 at 6 decimals) via shopspring/decimal, shared by the ledger's
// today-spent summation and the rules engine's limit comparisons so both
// use the same vetted conversion instead of separate ad hoc parsers.
func ParseToAtomic(amount string, decimals int) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, err
	}
	atomic := d.Shift(int32(decimals))
	if !atomic.IsInteger() {
		return 0, ErrTooPrecise
	}
	return atomic.IntPart(), nil
}
