// Package risk implements the risk bounded context: the gate that owns
// capital limits and the emergency stop.
package risk

import (
	"context"
	"time"

	"github.com/fd1az/flashguard/business/risk/app"
	riskDI "github.com/fd1az/flashguard/business/risk/di"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the risk gate with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.Gate, func(sr di.ServiceRegistry) *app.Gate {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		gate, err := app.NewGate(GateConfig(cfg.Risk), log)
		if err != nil {
			panic("failed to create risk gate: " + err.Error())
		}
		return gate
	})
	return nil
}

// Startup schedules the daily counter reset.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	gate := riskDI.GetGate(mono.Services())

	mono.Go("risk.daily-reset", func(ctx context.Context) error {
		return gate.RunDailyReset(ctx, cfg.Risk.DailyResetHourUTC)
	})

	mono.Logger().Info(ctx, "risk module started",
		"next_reset", app.NextReset(time.Now(), cfg.Risk.DailyResetHourUTC).Format(time.RFC3339),
	)
	return nil
}

// GateConfig maps the risk section of the configuration onto gate limits.
func GateConfig(rc config.RiskConfig) app.Config {
	return app.Config{
		MaxConcurrentTrades: rc.MaxConcurrentTrades,
		MaxDailyLoss:        rc.MaxDailyLossDecimal(),
		MaxLossPerHour:      rc.MaxLossPerHourDecimal(),
		MaxLossPerBlock:     rc.MaxLossPerBlockDecimal(),
		BlockWindow:         rc.BlockWindow,
		MaxLoanAmount:       rc.MaxLoanAmountDecimal(),
		MaxErrorsBeforeStop: rc.MaxErrorsBeforeStop,
		ErrorTimeWindow:     rc.ErrorTimeWindow,
	}
}
