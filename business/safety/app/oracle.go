package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
)

// OracleConfig holds per-source staleness bounds.
type OracleConfig struct {
	SignedFeedMaxAge time.Duration
	TWAPMaxAge       time.Duration
	ExchangeMaxAge   time.Duration
	MaxDeviation     decimal.Decimal
}

// DefaultOracleConfig returns the production bounds.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		SignedFeedMaxAge: 5 * time.Minute,
		TWAPMaxAge:       time.Minute,
		ExchangeMaxAge:   10 * time.Second,
		MaxDeviation:     decimal.RequireFromString("0.05"),
	}
}

// OracleCheck rejects stale prices and warns on sudden moves.
type OracleCheck struct {
	cfg OracleConfig
	now func() time.Time

	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// NewOracleCheck creates the check.
func NewOracleCheck(cfg OracleConfig) *OracleCheck {
	return &OracleCheck{cfg: cfg, now: time.Now, last: make(map[string]decimal.Decimal)}
}

func (o *OracleCheck) Name() string { return domain.CheckOracle }

// MaxAge returns the staleness bound for a source kind.
func (o *OracleCheck) MaxAge(kind pricingDomain.SourceKind) time.Duration {
	switch kind {
	case pricingDomain.KindSignedFeed:
		return o.cfg.SignedFeedMaxAge
	case pricingDomain.KindTWAP:
		return o.cfg.TWAPMaxAge
	case pricingDomain.KindExchange:
		return o.cfg.ExchangeMaxAge
	default:
		return o.cfg.ExchangeMaxAge
	}
}

// Check validates every quote in the context and records it as the last
// observed value for its token.
func (o *OracleCheck) Check(_ context.Context, sc *domain.Context) domain.CheckResult {
	if sc == nil || len(sc.Quotes) == 0 {
		return domain.Safe(domain.CheckOracle)
	}

	now := o.now()
	var issues, warnings []string

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, q := range sc.Quotes {
		token := strings.ToUpper(q.Token)
		age := q.Age(now)
		if bound := o.MaxAge(q.Kind); bound > 0 && age > bound {
			issues = append(issues, fmt.Sprintf("STALE ORACLE: %s price from %s is %s old (max %s)",
				token, q.Source, age.Round(time.Millisecond), bound))
			continue
		}

		if prev, ok := o.last[token]; ok && o.cfg.MaxDeviation.IsPositive() {
			if dev := pricingDomain.Deviation(prev, q.Value); dev.GreaterThan(o.cfg.MaxDeviation) {
				warnings = append(warnings, fmt.Sprintf("PRICE DEVIATION: %s moved %s%% from last price",
					token, dev.Mul(decimal.NewFromInt(100)).StringFixed(2)))
			}
		}
		o.last[token] = q.Value
	}

	return domain.NewResult(domain.CheckOracle, issues, warnings).With("quotes", len(sc.Quotes))
}
