package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1500000", 150000000, true},
		{"₦1,500,000", 150000000, true},
		{"NGN 2,000", 200000, true},
		{"N5000", 500000, true},
		{"750k", 75000000, true},
		{"2.5m", 250000000, true},
		{"12.345", 1235, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"₦", 0, false},
		{"1000000000000000", 100000000000000000, true},
		{"1000000000000000.01", 0, false},
		{"184467440737095516.17", 0, false},
		{"2000000000m", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "₦1,500,000.00", NewMoney(1_500_000).String())
	assert.Equal(t, "₦0.05", Money{Cents: 5}.String())
	assert.Equal(t, "-₦1,000.50", Money{Cents: -100050}.String())
}

func TestMoneyFromDecimal(t *testing.T) {
	assert.Equal(t, int64(1235), MoneyFromDecimal(decimal.RequireFromString("12.345")).Cents)
	assert.Equal(t, int64(1234), MoneyFromDecimal(decimal.RequireFromString("12.344")).Cents)
	assert.True(t, NewMoney(10_000).Decimal().Equal(decimal.NewFromInt(10_000)))
}

func TestMoneyIsMultipleOf(t *testing.T) {
	assert.True(t, NewMoney(1_000_000).IsMultipleOf(10_000))
	assert.False(t, NewMoney(15_000).IsMultipleOf(10_000))
	assert.False(t, Money{Cents: 1_000_050}.IsMultipleOf(5_000))
	assert.False(t, Money{}.IsMultipleOf(5_000))
}
