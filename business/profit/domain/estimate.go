// Package domain contains the profit estimation types.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Params describes one trade to price. Amount is the USD notional of the
// loan; BuyPrice and SellPrice are the two venue prices of Token.
type Params struct {
	OpportunityID     string
	Token             string
	Amount            decimal.Decimal
	BuyPrice          decimal.Decimal
	SellPrice         decimal.Decimal
	GasUnits          uint64
	SlippageTolerance decimal.Decimal

	// BaseFee and PriorityFee in wei. When nil the verifier reads the
	// current network gas price.
	BaseFee     *big.Int
	PriorityFee *big.Int
}

// Estimate is the cost breakdown of a trade, all values in USD.
//
//	Net = Gross - GasCost - ProtocolFee - SlippageCost
type Estimate struct {
	Gross        decimal.Decimal `json:"gross_profit"`
	GasCost      decimal.Decimal `json:"gas_cost"`
	ProtocolFee  decimal.Decimal `json:"protocol_fee"`
	SlippageCost decimal.Decimal `json:"slippage_cost"`
	Net          decimal.Decimal `json:"net_profit"`
	Confidence   float64         `json:"confidence"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// Validation is the verifier's verdict on one trade.
type Validation struct {
	OpportunityID   string        `json:"opportunity_id"`
	Approved        bool          `json:"approved"`
	Estimate        Estimate      `json:"estimate"`
	Reasons         []string      `json:"reasons,omitempty"`
	RecommendedWait time.Duration `json:"recommended_wait"`
}
