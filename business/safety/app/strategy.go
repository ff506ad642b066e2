package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
)

// StrategyConfig tunes opportunity decay and gas competition.
type StrategyConfig struct {
	FreshnessThreshold time.Duration
	MaxAgeMultiplier   float64
	GasWarGwei         decimal.Decimal
}

// DefaultStrategyConfig returns the production settings.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		FreshnessThreshold: 2 * time.Second,
		MaxAgeMultiplier:   3,
		GasWarGwei:         decimal.NewFromInt(100),
	}
}

// StrategyCheck rejects decayed opportunities and warns on gas wars.
type StrategyCheck struct {
	cfg StrategyConfig
	now func() time.Time
}

// NewStrategyCheck creates the check.
func NewStrategyCheck(cfg StrategyConfig) *StrategyCheck {
	if cfg.MaxAgeMultiplier <= 0 {
		cfg.MaxAgeMultiplier = 3
	}
	return &StrategyCheck{cfg: cfg, now: time.Now}
}

func (s *StrategyCheck) Name() string { return domain.CheckStrategy }

func (s *StrategyCheck) Check(_ context.Context, sc *domain.Context) domain.CheckResult {
	if sc == nil {
		return domain.Safe(domain.CheckStrategy)
	}
	var issues, warnings []string
	res := domain.CheckResult{}

	if !sc.DiscoveredAt.IsZero() && s.cfg.FreshnessThreshold > 0 {
		age := s.now().Sub(sc.DiscoveredAt)
		ceiling := time.Duration(float64(s.cfg.FreshnessThreshold) * s.cfg.MaxAgeMultiplier)
		switch {
		case age > ceiling:
			issues = append(issues, fmt.Sprintf("OPPORTUNITY EXPIRED: %.2fs old (max %.2fs)", age.Seconds(), ceiling.Seconds()))
		case age > s.cfg.FreshnessThreshold:
			warnings = append(warnings, fmt.Sprintf("OPPORTUNITY OLD: %.2fs since discovery", age.Seconds()))
		}
		res = res.With("age_seconds", age.Seconds())
	}

	if sc.MarketGasPrice != nil {
		market := chainDomain.WeiToGwei(sc.MarketGasPrice)
		if s.cfg.GasWarGwei.IsPositive() && market.GreaterThan(s.cfg.GasWarGwei) {
			warnings = append(warnings, fmt.Sprintf("GAS WAR: %s gwei (threshold %s)", market.StringFixed(1), s.cfg.GasWarGwei))
		}
		if sc.OwnGasPrice != nil && sc.OwnGasPrice.Cmp(sc.MarketGasPrice) < 0 {
			warnings = append(warnings, fmt.Sprintf("UNDERBIDDING: own gas %s < market %s gwei",
				chainDomain.WeiToGwei(sc.OwnGasPrice).StringFixed(1), market.StringFixed(1)))
		}
		res = res.With("gas_gwei", market.StringFixed(2))
	}

	out := domain.NewResult(domain.CheckStrategy, issues, warnings)
	out.Metadata = res.Metadata
	return out
}
