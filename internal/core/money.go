// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer kobo. Parsing and tax arithmetic go through
// shopspring/decimal so no float ever touches a stored value.
package core

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// CurrencySymbol is the marker used when rendering amounts.
const CurrencySymbol = "₦"

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest amount ParseAmount accepts, in naira. It keeps
// kobo values and their sums well inside int64.
var MaxAmount = decimal.New(1, 15)

// currencyMarkers are stripped before parsing, longest first.
var currencyMarkers = []string{"ngn", "naira", "₦", "n", "$", "€", "£"}

// Money is an amount in minor units (kobo).
type Money struct {
	Cents int64 `json:"cents"`
}

func NewMoney(major int64) Money {
	return Money{Cents: major * 100}
}

// MoneyFromDecimal rounds d half-up to two places.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(hundred).IntPart()}
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsPositive() bool { return m.Cents > 0 }

func (m Money) IsZero() bool { return m.Cents == 0 }

// IsMultipleOf reports whether m is a whole multiple of major currency units.
func (m Money) IsMultipleOf(major int64) bool {
	unit := major * 100
	return m.Cents > 0 && unit > 0 && m.Cents%unit == 0
}

// String renders the amount as ₦1,234,567.89.
func (m Money) String() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := humanize.Comma(cents / 100)
	frac := cents % 100
	return fmt.Sprintf("%s%s%s.%02d", sign, CurrencySymbol, whole, frac)
}

// ParseAmount converts free user input into Money.
//
// It strips currency markers, thousands separators and spaces, accepts a
// trailing k/m multiplier and rounds half-up to kobo. The result must be
// strictly positive and at most MaxAmount.
//
// Examples:
//
//	ParseAmount("₦1,500,000")  -> 1500000.00
//	ParseAmount("NGN 2.5m")    -> 2500000.00
//	ParseAmount("750k")        -> 750000.00
//	ParseAmount("12.345")      -> 12.35
func ParseAmount(s string) (Money, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, marker := range currencyMarkers {
		s = strings.TrimPrefix(s, marker)
		s = strings.TrimSuffix(s, marker)
		s = strings.TrimSpace(s)
	}
	s = strings.NewReplacer(",", "", "_", "", " ", "").Replace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return Money{}, ErrInvalidAmount
	}

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = decimal.NewFromInt(1_000)
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = decimal.NewFromInt(1_000_000)
		s = strings.TrimSuffix(s, "m")
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Mul(multiplier)
	if d.GreaterThan(MaxAmount) {
		return Money{}, ErrInvalidAmount
	}
	m := MoneyFromDecimal(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}
