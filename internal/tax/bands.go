// Package tax computes progressive income tax on the unspent excess of an
// agency fund.
package tax

import (
	"github.com/shopspring/decimal"

	"agencyfund/internal/core"
)

// Band is one slice of the progressive table. A zero Width means unbounded.
type Band struct {
	Width decimal.Decimal
	Rate  decimal.Decimal
}

// Allocation is the part of an excess that fell into one band.
type Allocation struct {
	Band    Band
	Taxable core.Money
	Tax     core.Money
}

var hundred = decimal.NewFromInt(100)

// DefaultBands is the canonical table: cumulative ceilings at 0.8M, 2.4M,
// 4.0M, 6.4M and 10.4M.
var DefaultBands = []Band{
	{Width: decimal.NewFromInt(800_000), Rate: decimal.Zero},
	{Width: decimal.NewFromInt(1_600_000), Rate: decimal.RequireFromString("0.15")},
	{Width: decimal.NewFromInt(1_600_000), Rate: decimal.RequireFromString("0.175")},
	{Width: decimal.NewFromInt(2_400_000), Rate: decimal.RequireFromString("0.20")},
	{Width: decimal.NewFromInt(4_000_000), Rate: decimal.RequireFromString("0.225")},
	{Width: decimal.Zero, Rate: decimal.RequireFromString("0.25")},
}

type Calculator struct {
	bands []Band
}

func NewCalculator(bands []Band) *Calculator {
	if len(bands) == 0 {
		bands = DefaultBands
	}
	return &Calculator{bands: bands}
}

// Compute returns the tax on excess, rounded half-up to two places.
// A zero or negative excess owes nothing.
func (c *Calculator) Compute(excess core.Money) core.Money {
	var total core.Money
	for _, a := range c.Breakdown(excess) {
		total = total.Add(a.Tax)
	}
	return total
}

// Breakdown allocates excess across the bands in order.
func (c *Calculator) Breakdown(excess core.Money) []Allocation {
	if !excess.IsPositive() {
		return nil
	}

	// Accumulate exact tax and round once at the end so per-band rounding
	// can never drift the total.
	remaining := excess.Decimal()
	exact := decimal.Zero
	var out []Allocation
	for _, b := range c.bands {
		if !remaining.IsPositive() {
			break
		}
		slice := remaining
		if b.Width.IsPositive() && b.Width.LessThan(remaining) {
			slice = b.Width
		}
		bandTax := slice.Mul(b.Rate)
		exact = exact.Add(bandTax)
		out = append(out, Allocation{
			Band:    b,
			Taxable: core.MoneyFromDecimal(slice),
			Tax:     core.MoneyFromDecimal(bandTax),
		})
		remaining = remaining.Sub(slice)
	}

	// Make the band taxes sum to the rounded total.
	var sum core.Money
	for _, a := range out {
		sum = sum.Add(a.Tax)
	}
	if diff := core.MoneyFromDecimal(exact).Sub(sum); !diff.IsZero() && len(out) > 0 {
		out[len(out)-1].Tax = out[len(out)-1].Tax.Add(diff)
	}
	return out
}

// EffectiveRate returns tax as a percentage of excess, rounded to 2 dp.
func EffectiveRate(tax, excess core.Money) float64 {
	if !tax.IsPositive() || !excess.IsPositive() {
		return 0
	}
	rate, _ := tax.Decimal().Div(excess.Decimal()).Mul(hundred).Round(2).Float64()
	return rate
}

var defaultCalculator = NewCalculator(nil)

// Compute applies the canonical table.
func Compute(excess core.Money) core.Money {
	return defaultCalculator.Compute(excess)
}
