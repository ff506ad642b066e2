package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashguard/internal/config"
)

// Mainnet addresses used by DefaultRegistry.
var (
	AddrWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWBTC = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")

	FeedETHUSD = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
)

// Registry is a thread-safe lookup of known tokens by symbol and address.
type Registry struct {
	mu        sync.RWMutex
	bySymbol  map[string]Token
	byAddress map[common.Address]Token
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol:  make(map[string]Token),
		byAddress: make(map[common.Address]Token),
	}
}

// DefaultRegistry returns the common mainnet tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Token{
		{Symbol: "WETH", Address: AddrWETH, Decimals: 18, ExchangeSymbol: "ETHUSDT", ChainlinkFeed: FeedETHUSD},
		{Symbol: "USDC", Address: AddrUSDC, Decimals: 6, Stable: true},
		{Symbol: "USDT", Address: AddrUSDT, Decimals: 6, Stable: true},
		{Symbol: "DAI", Address: AddrDAI, Decimals: 18, Stable: true},
		{Symbol: "WBTC", Address: AddrWBTC, Decimals: 8, ExchangeSymbol: "BTCUSDT"},
	} {
		_ = r.Register(t)
	}
	return r
}

// FromConfig builds the default registry and overlays configured tokens.
func FromConfig(tokens []config.TokenConfig) (*Registry, error) {
	r := DefaultRegistry()
	for _, tc := range tokens {
		t := Token{
			Symbol:         normalizeSymbol(tc.Symbol),
			Address:        tc.AddressHex(),
			Decimals:       tc.Decimals,
			FeeOnTransfer:  tc.FeeOnTransfer,
			Stable:         tc.Stable,
			ExchangeSymbol: tc.ExchangeSymbol,
		}
		if tc.ChainlinkFeed != "" {
			t.ChainlinkFeed = common.HexToAddress(tc.ChainlinkFeed)
		}
		r.Upsert(t)
	}
	return r, nil
}

// Register adds a token, failing if the symbol is already known.
func (r *Registry) Register(t Token) error {
	t.Symbol = normalizeSymbol(t.Symbol)
	if t.Symbol == "" {
		return fmt.Errorf("asset: empty symbol")
	}
	if t.Decimals > 36 {
		return fmt.Errorf("asset: suspicious decimals %d for %s", t.Decimals, t.Symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySymbol[t.Symbol]; exists {
		return fmt.Errorf("asset: %s already registered", t.Symbol)
	}
	r.put(t)
	return nil
}

// Upsert adds or replaces a token.
func (r *Registry) Upsert(t Token) {
	t.Symbol = normalizeSymbol(t.Symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.bySymbol[t.Symbol]; ok {
		delete(r.byAddress, old.Address)
	}
	r.put(t)
}

func (r *Registry) put(t Token) {
	r.bySymbol[t.Symbol] = t
	if t.Address != (common.Address{}) {
		r.byAddress[t.Address] = t
	}
}

// BySymbol looks a token up case-insensitively.
func (r *Registry) BySymbol(symbol string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[normalizeSymbol(symbol)]
	return t, ok
}

// ByAddress looks a token up by contract address.
func (r *Registry) ByAddress(addr common.Address) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byAddress[addr]
	return t, ok
}

// IsFeeOnTransfer reports whether symbol is a known fee-on-transfer token.
func (r *Registry) IsFeeOnTransfer(symbol string) bool {
	t, ok := r.BySymbol(symbol)
	return ok && t.FeeOnTransfer
}

// All returns every registered token.
func (r *Registry) All() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.bySymbol))
	for _, t := range r.bySymbol {
		out = append(out, t)
	}
	return out
}
