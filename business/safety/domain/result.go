package domain

import "time"

// Check names.
const (
	CheckConsensus   = "consensus"
	CheckBuilder     = "builder"
	CheckTransaction = "transaction"
	CheckOracle      = "oracle"
	CheckSimulation  = "simulation"
	CheckNetwork     = "network"
	CheckStrategy    = "strategy"
)

// Systemic reports whether a rejection by check points at the gate's
// environment (relays, network) rather than at one opportunity. Stale
// data, reorgs and nonce races are per-opportunity and never escalate.
func Systemic(check string) bool {
	switch check {
	case CheckBuilder, CheckNetwork:
		return true
	}
	return false
}

// CheckResult is the outcome of one sub-check.
type CheckResult struct {
	Check    string         `json:"check"`
	Level    Level          `json:"level"`
	Issues   []string       `json:"issues,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewResult derives the level from the findings: any issue rejects, any
// warning warns.
func NewResult(check string, issues, warnings []string) CheckResult {
	r := CheckResult{Check: check, Issues: issues, Warnings: warnings, Level: LevelSafe}
	switch {
	case len(issues) > 0:
		r.Level = LevelReject
	case len(warnings) > 0:
		r.Level = LevelWarning
	}
	return r
}

// Safe returns a passing result with no findings.
func Safe(check string) CheckResult {
	return CheckResult{Check: check, Level: LevelSafe}
}

// With attaches a metadata entry.
func (r CheckResult) With(key string, value any) CheckResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}

// Passed reports whether the result permits the trade.
func (r CheckResult) Passed() bool { return r.Level.Permits() }

// Report aggregates every sub-check for one evaluation.
type Report struct {
	Level     Level         `json:"level"`
	Issues    []string      `json:"issues,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Aggregate takes the worst level and concatenates findings in order.
func Aggregate(results []CheckResult, at time.Time) Report {
	rep := Report{Level: LevelSafe, Checks: results, CheckedAt: at}
	for _, r := range results {
		rep.Level = Worst(rep.Level, r.Level)
		rep.Issues = append(rep.Issues, r.Issues...)
		rep.Warnings = append(rep.Warnings, r.Warnings...)
	}
	return rep
}

// Passed reports whether the aggregate permits the trade.
func (r Report) Passed() bool { return r.Level.Permits() }

// Systemic reports whether a systemic sub-check rejected.
func (r Report) Systemic() bool {
	for _, c := range r.Checks {
		if !c.Passed() && Systemic(c.Check) {
			return true
		}
	}
	return false
}

// Stats counts gate decisions.
type Stats struct {
	TotalChecks    int64   `json:"total_checks"`
	FailedChecks   int64   `json:"failed_checks"`
	RejectedTrades int64   `json:"rejected_trades"`
	SuccessRate    float64 `json:"success_rate"`
}
