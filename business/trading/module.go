// Package trading implements the trading bounded context: the loop that
// takes opportunities through risk, profit and safety, dispatches the
// approved ones and settles them against new heads.
package trading

import (
	"context"
	"time"

	chainDI "github.com/fd1az/flashguard/business/chain/di"
	pricingDI "github.com/fd1az/flashguard/business/pricing/di"
	profitDI "github.com/fd1az/flashguard/business/profit/di"
	reliabilityDI "github.com/fd1az/flashguard/business/reliability/di"
	riskDI "github.com/fd1az/flashguard/business/risk/di"
	safetyDI "github.com/fd1az/flashguard/business/safety/di"
	"github.com/fd1az/flashguard/business/trading/app"
	tradingDI "github.com/fd1az/flashguard/business/trading/di"
	"github.com/fd1az/flashguard/business/trading/infra/dispatch"
	"github.com/fd1az/flashguard/business/trading/infra/journal"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

const journalConnectTimeout = 10 * time.Second

// Module implements the trading bounded context.
type Module struct{}

// RegisterServices registers the pipeline, the loop and their adapters.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, tradingDI.Journal, func(sr di.ServiceRegistry) app.Journal {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Journal.DSN == "" {
			return journal.NewConsole()
		}
		ctx, cancel := context.WithTimeout(context.Background(), journalConnectTimeout)
		defer cancel()
		pg, err := journal.OpenPostgres(ctx, cfg.Journal.DSN, log)
		if err != nil {
			panic("failed to open decision journal: " + err.Error())
		}
		return pg
	})

	di.RegisterToken(c, tradingDI.Dispatcher, func(sr di.ServiceRegistry) app.Dispatcher {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Trading.DryRun {
			return dispatch.NewPaper()
		}
		return dispatch.NewRelay(safetyDI.GetBuilder(sr), cfg.Safety.Builder.SubmitTimeout)
	})

	di.RegisterToken(c, tradingDI.Settler, func(sr di.ServiceRegistry) *app.Settler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		scfg := app.DefaultSettlerConfig()
		if cfg.Pricing.NativeSymbol != "" {
			scfg.NativeSymbol = cfg.Pricing.NativeSymbol
		}
		return app.NewSettler(scfg,
			riskDI.GetGate(sr),
			safetyDI.GetTransaction(sr).Registry(),
			safetyDI.GetSimulation(sr),
			chainDI.GetChainClient(sr),
			pricingDI.GetPriceSource(sr),
			log,
		)
	})

	di.RegisterToken(c, tradingDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		pcfg := app.DefaultPipelineConfig()
		if cfg.Trading.EvalTimeout > 0 {
			pcfg.EvalTimeout = cfg.Trading.EvalTimeout
		}
		client := chainDI.GetChainClient(sr)
		pipeline, err := app.NewPipeline(pcfg, app.PipelineDeps{
			Risk:       riskDI.GetGate(sr),
			Profit:     profitDI.GetVerifier(sr),
			Safety:     safetyDI.GetGate(sr),
			Nonces:     safetyDI.GetTransaction(sr).Registry(),
			Dispatcher: tradingDI.GetDispatcher(sr),
			Settler:    tradingDI.GetSettler(sr),
			Journal:    tradingDI.GetJournal(sr),
			Prices:     pricingDI.GetPriceSource(sr),
			Gas:        client,
		}, log)
		if err != nil {
			panic("failed to create trading pipeline: " + err.Error())
		}
		return pipeline
	})

	di.RegisterToken(c, tradingDI.Loop, func(sr di.ServiceRegistry) *app.Loop {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		lcfg := app.DefaultLoopConfig()
		if cfg.Trading.Workers > 0 {
			lcfg.Workers = cfg.Trading.Workers
		}
		if cfg.Trading.InboxSize > 0 {
			lcfg.InboxSize = cfg.Trading.InboxSize
		}
		return app.NewLoop(lcfg, tradingDI.GetPipeline(sr), profitDI.GetFilter(sr), log)
	})

	di.RegisterToken(c, tradingDI.RecoveryHandler, func(sr di.ServiceRegistry) *app.RecoveryHandler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewRecoveryHandler(
			tradingDI.GetLoop(sr),
			safetyDI.GetTransaction(sr).Registry(),
			cfg.Trading.SenderAddressHex(),
			cfg.Reliability.RecoveryCooldown,
			log,
		)
	})

	return nil
}

// Startup hooks settlement onto new heads and starts the loop and the
// recovery handler.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	cfg := mono.Config()

	settler := tradingDI.GetSettler(sr)
	chainDI.GetChainService(sr).OnHead(settler.OnHead)

	loop := tradingDI.GetLoop(sr)
	mono.Go("trading.loop", loop.Run)

	actions := reliabilityDI.GetSupervisor(sr).Actions()
	handler := tradingDI.GetRecoveryHandler(sr)
	mono.Go("trading.recovery", func(ctx context.Context) error {
		return handler.Run(ctx, actions)
	})

	mono.OnClose(tradingDI.GetJournal(sr))

	mono.Logger().Info(ctx, "trading module started",
		"workers", cfg.Trading.Workers,
		"dry_run", cfg.Trading.DryRun,
		"sender", cfg.Trading.SenderAddressHex().Hex(),
	)
	return nil
}
