package domain

import "github.com/shopspring/decimal"

// Spread is the relative difference between a buy and a sell leg.
type Spread struct {
	Buy         decimal.Decimal
	Sell        decimal.Decimal
	Absolute    decimal.Decimal // Sell - Buy
	Ratio       decimal.Decimal // (Sell - Buy) / Buy
	BasisPoints decimal.Decimal
}

// CalculateSpread computes the spread between two legs. A zero buy price
// yields a zero ratio.
func CalculateSpread(buy, sell decimal.Decimal) Spread {
	absolute := sell.Sub(buy)
	ratio := decimal.Zero
	if !buy.IsZero() {
		ratio = absolute.Div(buy)
	}
	return Spread{
		Buy:         buy,
		Sell:        sell,
		Absolute:    absolute,
		Ratio:       ratio,
		BasisPoints: ratio.Mul(decimal.NewFromInt(10000)),
	}
}

// Deviation returns |current - previous| / previous, or zero when previous
// is zero.
func Deviation(previous, current decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Abs().Div(previous.Abs())
}
