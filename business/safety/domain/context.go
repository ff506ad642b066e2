package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
)

// SimulationOutcome is what a pre-trade simulation reported.
type SimulationOutcome struct {
	Success  bool   `json:"success"`
	Reverted bool   `json:"reverted"`
	GasUsed  uint64 `json:"gas_used"`
	GasLimit uint64 `json:"gas_limit"`
}

// Context carries everything the sub-checks inspect for one opportunity.
// Zero-valued sections are skipped by the check that owns them.
type Context struct {
	OpportunityID string
	DiscoveredAt  time.Time

	// Transaction
	Sender      common.Address
	Nonce       *uint64
	PayloadHash common.Hash
	Tokens      []string

	// Oracle
	Quotes []pricingDomain.Quote

	// Consensus and simulation
	SimulatedBlock uint64
	SimulatedHash  common.Hash
	Simulation     *SimulationOutcome

	// Builder
	Bundle *chainDomain.Bundle

	// Strategy, in wei
	OwnGasPrice    *big.Int
	MarketGasPrice *big.Int
}
