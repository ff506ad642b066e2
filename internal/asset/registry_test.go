package asset

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/internal/config"
)

func TestToken_UnitConversion(t *testing.T) {
	usdc, ok := DefaultRegistry().BySymbol("usdc")
	require.True(t, ok)

	raw := usdc.ToUnits(decimal.RequireFromString("1234.5678919"))
	assert.Equal(t, big.NewInt(1234567891), raw)
	assert.Equal(t, "1234.567891", usdc.ToDecimal(raw).String())
	assert.True(t, usdc.ToDecimal(nil).IsZero())
}

func TestRegistry_RegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Token{Symbol: "weth", Address: AddrWETH, Decimals: 18}))
	assert.Error(t, r.Register(Token{Symbol: "WETH", Decimals: 18}))
	assert.Error(t, r.Register(Token{Symbol: ""}))

	got, ok := r.ByAddress(AddrWETH)
	require.True(t, ok)
	assert.Equal(t, "WETH", got.Symbol)
}

func TestFromConfig_OverlaysTokens(t *testing.T) {
	r, err := FromConfig([]config.TokenConfig{
		{Symbol: "paxg", Address: "0x45804880De22913dAFE09f4980848ECE6EcbAf78", Decimals: 18, FeeOnTransfer: true},
		{Symbol: "WETH", Address: AddrWETH.Hex(), Decimals: 18, ExchangeSymbol: "ETHUSDC"},
	})
	require.NoError(t, err)

	assert.True(t, r.IsFeeOnTransfer("PAXG"))
	assert.False(t, r.IsFeeOnTransfer("USDC"))
	assert.False(t, r.IsFeeOnTransfer("UNKNOWN"))

	weth, ok := r.BySymbol("WETH")
	require.True(t, ok)
	assert.Equal(t, "ETHUSDC", weth.ExchangeSymbol)
	assert.False(t, weth.HasFeed())
}
