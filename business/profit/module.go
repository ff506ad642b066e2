// Package profit implements the profit verification bounded context.
package profit

import (
	"context"

	"github.com/shopspring/decimal"

	chainDI "github.com/fd1az/flashguard/business/chain/di"
	"github.com/fd1az/flashguard/business/profit/app"
	profitDI "github.com/fd1az/flashguard/business/profit/di"
	pricingDI "github.com/fd1az/flashguard/business/pricing/di"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// Module implements the profit bounded context.
type Module struct{}

// RegisterServices registers the verifier and the opportunity filter.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, profitDI.Verifier, func(sr di.ServiceRegistry) *app.Verifier {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewVerifier(VerifierConfig(cfg), pricingDI.GetPriceSource(sr), chainDI.GetChainClient(sr), log)
	})

	di.RegisterToken(c, profitDI.Filter, func(sr di.ServiceRegistry) *app.OpportunityFilter {
		cfg := sr.Get("config").(*config.Config)
		return app.NewOpportunityFilter(cfg.Trading.TopOpportunity)
	})
	return nil
}

// Startup has nothing to start; the verifier is request driven.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "profit module started",
		"min_profit_usd", mono.Config().Profit.MinProfitUSD,
	)
	return nil
}

// VerifierConfig maps configuration onto verifier settings.
func VerifierConfig(cfg *config.Config) app.Config {
	pc := cfg.Profit
	prio := decimal.NewFromFloat(pc.PriorityFeeGwei).Mul(decimal.New(1, 9)).BigInt()

	return app.Config{
		MinProfitUSD:       pc.MinProfitUSDDecimal(),
		MinProfitRatio:     pc.MinProfitRatioDecimal(),
		MinConfidence:      pc.MinConfidence,
		GasSafetyMargin:    pc.GasSafetyMarginDecimal(),
		SlippageMargin:     pc.SlippageMarginDecimal(),
		MaxSlippage:        decimal.NewFromFloat(pc.MaxSlippage),
		ProtocolFeeRate:    pc.ProtocolFeeRate(),
		DefaultGasUnits:    pc.DefaultGasUnits,
		PriorityFeeWei:     prio,
		NativeSymbol:       cfg.Pricing.NativeSymbol,
		ConfidenceFloor:    pc.ConfidenceFloor,
		LargeTradeUSD:      decimal.NewFromFloat(pc.LargeTradeUSD),
		VeryLargeTradeUSD:  decimal.NewFromFloat(pc.VeryLargeTradeUSD),
		MaxPriceDivergence: decimal.NewFromFloat(pc.MaxPriceDivergence),
		MaxLegDeviation:    decimal.NewFromFloat(pc.MaxLegDeviation),
		StaleConfidence:    cfg.Pricing.FallbackConfidence,
		WaitPollInterval:   pc.WaitPollInterval,
		WaitMaxDuration:    pc.WaitMaxDuration,
	}
}
