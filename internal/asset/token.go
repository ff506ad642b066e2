// Package asset describes tradable tokens and converts between on-chain
// units and decimal amounts.
package asset

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token is the static metadata the gate needs about an ERC20.
type Token struct {
	Symbol         string
	Address        common.Address
	Decimals       uint8
	FeeOnTransfer  bool
	Stable         bool
	ExchangeSymbol string         // CEX ticker, e.g. ETHUSDT
	ChainlinkFeed  common.Address // zero when no feed is configured
}

// HasFeed reports whether an on-chain price feed is configured.
func (t Token) HasFeed() bool {
	return t.ChainlinkFeed != (common.Address{})
}

// ToDecimal converts raw token units to a decimal amount.
func (t Token) ToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(t.Decimals))
}

// ToUnits converts a decimal amount to raw token units, truncating any
// precision beyond the token decimals.
func (t Token) ToUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(int32(t.Decimals)).Truncate(0).BigInt()
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
