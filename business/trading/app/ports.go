// Package app contains the trading loop: the per-opportunity pipeline,
// the worker pool that feeds it and the settlement of dispatched bundles.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
)

// RiskGate owns capital limits.
type RiskGate interface {
	Allow(amount decimal.Decimal) (bool, string)
	Acquire() (func(), error)
	RecordResult(ctx context.Context, success bool, profit decimal.Decimal)
	RecordError(ctx context.Context, kind, msg string)
}

// ProfitVerifier prices a trade.
type ProfitVerifier interface {
	Verify(ctx context.Context, p profitDomain.Params) profitDomain.Validation
}

// SafetyGate runs the safety sub-checks.
type SafetyGate interface {
	Check(ctx context.Context, sc *safetyDomain.Context) safetyDomain.Report
}

// Nonces allocates and settles sender nonces.
type Nonces interface {
	NextFree(ctx context.Context, sender common.Address) (uint64, error)
	Track(sender common.Address, nonce uint64, payload common.Hash) error
	Confirm(sender common.Address, nonce uint64)
	Drop(sender common.Address, nonce uint64)
	Resync(sender common.Address)
}

// SimulationTracker learns how simulations compare with execution.
type SimulationTracker interface {
	Record(simulated bool, actual *bool)
}

// Dispatcher submits an approved bundle.
type Dispatcher interface {
	Dispatch(ctx context.Context, opp domain.Opportunity) (*chainDomain.Submission, error)
	DryRun() bool
}

// Journal persists decisions.
type Journal interface {
	Record(ctx context.Context, d domain.Decision) error
	Close() error
}

// PriceSource quotes tokens for the oracle check.
type PriceSource interface {
	Price(ctx context.Context, token string) (*pricingDomain.Quote, error)
}

// GasOracle reports the market gas price.
type GasOracle interface {
	GasPrice(ctx context.Context) (*chainDomain.GasPrice, error)
}

// ChainReader reads what settlement needs from the chain.
type ChainReader interface {
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, block uint64) (*big.Int, error)
	Receipt(ctx context.Context, tx common.Hash) (*chainDomain.Receipt, error)
}
