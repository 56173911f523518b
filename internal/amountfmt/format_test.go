package amountfmt

import (
	"math/big"
	"testing"
)

func TestFormatAtomic(t *testing.T) {
	cases := []struct {
		atomic   int64
		decimals int
		want     string
	}{
		{100000, 6, "0.1"},
		{10000, 6, "0.01"},
		{0, 6, "0.0"},
		{1234567, 6, "1.234567"},
		{1000000, 6, "1.0"},
		{-50000, 6, "-0.05"},
	}

	for _, c := range cases {
		got := FormatAtomic(big.NewInt(c.atomic), c.decimals)
		if got != c.want {
			t.Errorf("FormatAtomic(%d, %d) = %q, want %q", c.atomic, c.decimals, got, c.want)
		}
	}
}
