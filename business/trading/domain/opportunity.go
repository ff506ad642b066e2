// Package domain contains the trading loop types: opportunities coming in
// and decisions going out.
package domain

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
)

// Opportunity is a candidate flash-loan trade produced by a scanner.
// It is evaluated exactly once.
type Opportunity struct {
	ID           string          `json:"id"`
	Path         []string        `json:"path"` // token symbols, first is the loan token
	Amount       decimal.Decimal `json:"amount"`
	BuyVenue     string          `json:"buy_venue"`
	SellVenue    string          `json:"sell_venue"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	RawProfit    decimal.Decimal `json:"raw_profit"`
	DiscoveredAt time.Time       `json:"discovered_at"`

	Sender      common.Address  `json:"sender"`
	TargetBlock uint64          `json:"target_block"`
	GasLimit    uint64          `json:"gas_limit"`
	Slippage    decimal.Decimal `json:"slippage_tolerance"`

	// Bid in wei; nil bids the market rate.
	MaxFeePerGas *big.Int `json:"max_fee_per_gas,omitempty"`

	// Signed transactions for the bundle, hex on the wire.
	Txs []hexutil.Bytes `json:"txs,omitempty"`

	SimulatedBlock uint64                          `json:"simulated_block,omitempty"`
	SimulatedHash  common.Hash                     `json:"simulated_hash,omitempty"`
	Simulation     *safetyDomain.SimulationOutcome `json:"simulation,omitempty"`
}

// NewOpportunity assigns an id and a discovery time when missing.
func NewOpportunity(o Opportunity, now time.Time) Opportunity {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.DiscoveredAt.IsZero() {
		o.DiscoveredAt = now
	}
	path := make([]string, len(o.Path))
	for i, t := range o.Path {
		path[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	o.Path = path
	return o
}

var (
	errNoPath   = errors.New("opportunity has no token path")
	errAmount   = errors.New("opportunity amount must be positive")
	errPrices   = errors.New("opportunity prices must be positive")
	errNoTarget = errors.New("opportunity has no target block")
)

// Validate checks the fields every stage relies on.
func (o Opportunity) Validate() error {
	switch {
	case len(o.Path) == 0:
		return errNoPath
	case !o.Amount.IsPositive():
		return errAmount
	case !o.BuyPrice.IsPositive() || !o.SellPrice.IsPositive():
		return errPrices
	case len(o.Txs) > 0 && o.TargetBlock == 0:
		return errNoTarget
	}
	return nil
}

// LoanToken is the first token of the path.
func (o Opportunity) LoanToken() string {
	if len(o.Path) == 0 {
		return ""
	}
	return o.Path[0]
}

// Bundle returns the transactions as a relay bundle, or nil when there
// are none.
func (o Opportunity) Bundle() *chainDomain.Bundle {
	if len(o.Txs) == 0 {
		return nil
	}
	txs := make([][]byte, len(o.Txs))
	for i, tx := range o.Txs {
		txs[i] = tx
	}
	return &chainDomain.Bundle{Txs: txs, TargetBlock: o.TargetBlock}
}

// PayloadHash identifies what this opportunity would send.
func (o Opportunity) PayloadHash() common.Hash {
	if b := o.Bundle(); b != nil {
		return b.Fingerprint()
	}
	return crypto.Keccak256Hash([]byte(o.ID))
}

// ProfitParams maps the opportunity onto verifier inputs.
func (o Opportunity) ProfitParams() profitDomain.Params {
	return profitDomain.Params{
		OpportunityID:     o.ID,
		Token:             o.LoanToken(),
		Amount:            o.Amount,
		BuyPrice:          o.BuyPrice,
		SellPrice:         o.SellPrice,
		GasUnits:          o.GasLimit,
		SlippageTolerance: o.Slippage,
	}
}
