package domain

import (
	"time"

	"github.com/shopspring/decimal"

	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
)

// Stage names the pipeline step that produced a decision.
type Stage string

const (
	StageIntake   Stage = "intake"
	StageRisk     Stage = "risk"
	StageProfit   Stage = "profit"
	StageSafety   Stage = "safety"
	StageDispatch Stage = "dispatch"
)

// Decision is the trade validation for one opportunity. A rejected
// decision names the stage that stopped it and every reason given.
type Decision struct {
	OpportunityID string             `json:"opportunity_id"`
	Approved      bool               `json:"approved"`
	Stage         Stage              `json:"stage"`
	Reasons       []string           `json:"reasons,omitempty"`
	Warnings      []string           `json:"warnings,omitempty"`
	Amount        decimal.Decimal    `json:"amount"`
	NetProfit     decimal.Decimal    `json:"net_profit"`
	Confidence    float64            `json:"confidence"`
	SafetyLevel   safetyDomain.Level `json:"safety_level"`
	Relay         string             `json:"relay,omitempty"`
	BundleHash    string             `json:"bundle_hash,omitempty"`
	DryRun        bool               `json:"dry_run,omitempty"`
	DecidedAt     time.Time          `json:"decided_at"`
	Elapsed       time.Duration      `json:"elapsed"`
}

// Reject marks the decision rejected at stage.
func (d *Decision) Reject(stage Stage, reasons ...string) {
	d.Approved = false
	d.Stage = stage
	d.Reasons = append(d.Reasons, reasons...)
}

// Profit returns the verifier view of the decision.
func (d Decision) Profit() profitDomain.Validation {
	return profitDomain.Validation{
		OpportunityID: d.OpportunityID,
		Approved:      d.Approved,
		Estimate:      profitDomain.Estimate{Net: d.NetProfit, Confidence: d.Confidence},
		Reasons:       d.Reasons,
	}
}
