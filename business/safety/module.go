// Package safety implements the safety bounded context: seven independent
// protection checks aggregated into one verdict per opportunity.
package safety

import (
	"context"

	"github.com/shopspring/decimal"

	chainApp "github.com/fd1az/flashguard/business/chain/app"
	chainDI "github.com/fd1az/flashguard/business/chain/di"
	riskDI "github.com/fd1az/flashguard/business/risk/di"
	"github.com/fd1az/flashguard/business/safety/app"
	safetyDI "github.com/fd1az/flashguard/business/safety/di"
	"github.com/fd1az/flashguard/internal/asset"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// Module implements the safety bounded context.
type Module struct{}

// RegisterServices registers the sub-checks and the gate.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, safetyDI.Consensus, func(sr di.ServiceRegistry) *app.ConsensusCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Consensus
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewConsensusCheck(app.ConsensusConfig{
			ReorgDepth:         cfg.ReorgDepth,
			BlockWindow:        cfg.BlockWindow,
			BaseFeeWindow:      cfg.BaseFeeWindow,
			BaseFeeSpikeFactor: cfg.BaseFeeSpikeFactor,
			MaxTimestampDrift:  cfg.MaxTimestampDrift,
			MaxBundleBlockGap:  cfg.MaxBundleBlockGap,
		}, log)
	})

	di.RegisterToken(c, safetyDI.Builder, func(sr di.ServiceRegistry) *app.BuilderCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Builder
		log := sr.Get("logger").(logger.LoggerInterface)

		relays := append([]chainApp.BundleRelay(nil), chainDI.GetRelays(sr)...)
		// The node itself is the relay of last resort.
		if node, ok := chainDI.GetChainClient(sr).(chainApp.BundleRelay); ok {
			relays = append(relays, node)
		}
		return app.NewBuilderCheck(app.BuilderConfig{
			DuplicateWindow: cfg.DuplicateWindow,
			HistorySize:     cfg.HistorySize,
			MaxAttempts:     cfg.MaxAttempts,
			RetryBackoff:    cfg.RetryBackoff,
			SubmitTimeout:   cfg.SubmitTimeout,
		}, log, relays...)
	})

	di.RegisterToken(c, safetyDI.Transaction, func(sr di.ServiceRegistry) *app.TransactionCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Transaction
		registry := sr.Get("assetRegistry").(*asset.Registry)
		pending := app.NewPendingRegistry(chainDI.GetChainClient(sr))
		return app.NewTransactionCheck(pending, registry, cfg.MaxNonceGap)
	})

	di.RegisterToken(c, safetyDI.Oracle, func(sr di.ServiceRegistry) *app.OracleCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Oracle
		return app.NewOracleCheck(app.OracleConfig{
			SignedFeedMaxAge: cfg.SignedFeedMaxAge,
			TWAPMaxAge:       cfg.TWAPMaxAge,
			ExchangeMaxAge:   cfg.ExchangeMaxAge,
			MaxDeviation:     decimal.NewFromFloat(cfg.MaxDeviation),
		})
	})

	di.RegisterToken(c, safetyDI.Simulation, func(sr di.ServiceRegistry) *app.SimulationCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Simulation
		return app.NewSimulationCheck(app.SimulationConfig{
			Window:            cfg.Window,
			MinSamples:        cfg.MinSamples,
			MinSuccessRate:    cfg.MinSuccessRate,
			MinMatchRate:      cfg.MinMatchRate,
			GasLimitThreshold: cfg.GasLimitThreshold,
		})
	})

	di.RegisterToken(c, safetyDI.Network, func(sr di.ServiceRegistry) *app.NetworkCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Network
		client := chainDI.GetChainClient(sr)
		meter, _ := client.(chainApp.RequestMeter)
		return app.NewNetworkCheck(app.NetworkConfig{
			ProbeTimeout:      cfg.ProbeTimeout,
			MaxLatency:        cfg.MaxLatency,
			MaxRequestsPerSec: cfg.MaxRequestsPerSec,
		}, client, meter)
	})

	di.RegisterToken(c, safetyDI.Strategy, func(sr di.ServiceRegistry) *app.StrategyCheck {
		cfg := sr.Get("config").(*config.Config).Safety.Strategy
		return app.NewStrategyCheck(app.StrategyConfig{
			FreshnessThreshold: cfg.FreshnessThreshold,
			MaxAgeMultiplier:   cfg.MaxAgeMultiplier,
			GasWarGwei:         decimal.NewFromFloat(cfg.GasWarGwei),
		})
	})

	di.RegisterToken(c, safetyDI.Gate, func(sr di.ServiceRegistry) *app.Gate {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		gate, err := app.NewGate(log, riskDI.GetGate(sr), cfg.Safety.EscalateAfter,
			safetyDI.GetConsensus(sr),
			safetyDI.GetStrategy(sr),
			safetyDI.GetOracle(sr),
			safetyDI.GetTransaction(sr),
			safetyDI.GetSimulation(sr),
			safetyDI.GetBuilder(sr),
			safetyDI.GetNetwork(sr),
		)
		if err != nil {
			panic("failed to create safety gate: " + err.Error())
		}
		return gate
	})

	return nil
}

// Startup feeds chain heads into the consensus tracker.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	consensus := safetyDI.GetConsensus(sr)
	chainDI.GetChainService(sr).OnHead(consensus.OnHead)

	mono.Logger().Info(ctx, "safety module started")
	return nil
}
