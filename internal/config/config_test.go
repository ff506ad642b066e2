package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  http_url: http://localhost:8545
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Risk.MaxConcurrentTrades)
	assert.Equal(t, 10000.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, time.Hour, cfg.Risk.ErrorTimeWindow)
	assert.Equal(t, 10, cfg.Risk.MaxErrorsBeforeStop)
	assert.Equal(t, 0.7, cfg.Profit.MinConfidence)
	assert.Equal(t, "0.0009", cfg.Profit.ProtocolFeeRate().String())
	assert.Equal(t, 3, cfg.Safety.Consensus.ReorgDepth)
	assert.Equal(t, 12*time.Second, cfg.Safety.Consensus.MaxTimestampDrift)
	assert.Equal(t, time.Minute, cfg.Safety.Oracle.TWAPMaxAge)
	assert.Equal(t, 5*time.Minute, cfg.Safety.Oracle.SignedFeedMaxAge)
	assert.Equal(t, 30*time.Second, cfg.Reliability.CheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.Reliability.RecoveryCooldown)
	assert.Equal(t, 3, cfg.Trading.Workers)
}

func TestLoad_FileOverridesAndTokens(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  http_url: http://localhost:8545
risk:
  max_daily_loss: 2500
tokens:
  - symbol: WETH
    address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    decimals: 18
    exchange_symbol: ETHUSDT
  - symbol: PAXG
    address: "0x45804880De22913dAFE09f4980848ECE6EcbAf78"
    decimals: 18
    fee_on_transfer: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2500", cfg.Risk.MaxDailyLossDecimal().String())
	require.Len(t, cfg.Tokens, 2)
	assert.True(t, cfg.Tokens[1].FeeOnTransfer)
	assert.Equal(t, "ETHUSDT", cfg.Tokens[0].ExchangeSymbol)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ETH_HTTP_URL", "http://node:8545")
	t.Setenv("FLASHGUARD_MAX_DAILY_LOSS", "1234")

	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", cfg.Ethereum.HTTPURL)
	assert.Equal(t, 1234.0, cfg.Risk.MaxDailyLoss)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		path := writeConfig(t, "ethereum:\n  http_url: http://localhost:8545\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing rpc", func(c *Config) { c.Ethereum.HTTPURL = "" }},
		{"no relays", func(c *Config) { c.Relays.URLs = nil }},
		{"bad sender", func(c *Config) { c.Trading.SenderAddress = "nope" }},
		{"zero workers", func(c *Config) { c.Trading.Workers = 0 }},
		{"confidence range", func(c *Config) { c.Profit.MinConfidence = 1.5 }},
		{"margin below one", func(c *Config) { c.Profit.GasSafetyMargin = 0.9 }},
		{"reorg window", func(c *Config) { c.Safety.Consensus.BlockWindow = 2 }},
		{"bad token", func(c *Config) { c.Tokens = []TokenConfig{{Symbol: "X", Address: "zz"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
