package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)

// GasPrice is an EIP-1559 fee snapshot.
type GasPrice struct {
	BaseFee     *big.Int
	PriorityFee *big.Int
	Timestamp   time.Time
}

// NewGasPrice creates a GasPrice stamped now. Nil inputs become zero.
func NewGasPrice(baseFee, priorityFee *big.Int) *GasPrice {
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	if priorityFee == nil {
		priorityFee = new(big.Int)
	}
	return &GasPrice{BaseFee: baseFee, PriorityFee: priorityFee, Timestamp: time.Now()}
}

// Wei returns base fee plus priority fee.
func (g *GasPrice) Wei() *big.Int {
	return new(big.Int).Add(g.BaseFee, g.PriorityFee)
}

// Gwei returns the total price in gwei.
func (g *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(g.Wei(), 0).Div(weiPerGwei)
}

// EffectiveWei returns base fee inflated by margin plus the priority fee.
func (g *GasPrice) EffectiveWei(margin decimal.Decimal) decimal.Decimal {
	base := decimal.NewFromBigInt(g.BaseFee, 0).Mul(margin)
	return base.Add(decimal.NewFromBigInt(g.PriorityFee, 0))
}

// WeiToGwei converts a wei amount to gwei.
func WeiToGwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerGwei)
}
