// Package reliability implements the reliability bounded context: host and
// service health, bounded auto-recovery and the fail-safe that halts trading.
package reliability

import (
	"context"
	"time"

	chainDI "github.com/fd1az/flashguard/business/chain/di"
	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDI "github.com/fd1az/flashguard/business/pricing/di"
	"github.com/fd1az/flashguard/business/reliability/app"
	"github.com/fd1az/flashguard/business/reliability/domain"
	reliabilityDI "github.com/fd1az/flashguard/business/reliability/di"
	"github.com/fd1az/flashguard/business/reliability/infra/system"
	riskDI "github.com/fd1az/flashguard/business/risk/di"
	safetyDI "github.com/fd1az/flashguard/business/safety/di"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// reorgGrace is how long a detected reorg keeps the consensus probe degraded.
const reorgGrace = 5 * time.Minute

// Module implements the reliability bounded context.
type Module struct{}

// RegisterServices registers the monitor, recovery and supervisor.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, reliabilityDI.Sampler, func(sr di.ServiceRegistry) app.ResourceSampler {
		cfg := sr.Get("config").(*config.Config)
		return system.NewSampler(cfg.Reliability.DiskPath)
	})

	di.RegisterToken(c, reliabilityDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		monitor, err := app.NewMonitor(MonitorConfig(cfg.Reliability),
			reliabilityDI.GetSampler(sr), chainDI.GetChainClient(sr), log)
		if err != nil {
			panic("failed to create health monitor: " + err.Error())
		}
		return monitor
	})

	di.RegisterToken(c, reliabilityDI.Recovery, func(sr di.ServiceRegistry) *app.AutoRecovery {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewAutoRecovery(app.RecoveryConfig{
			Cooldown:   cfg.Reliability.RecoveryCooldown,
			MaxRetries: cfg.Reliability.MaxRetries,
			History:    cfg.Reliability.RecoveryHistory,
		}, log)
	})

	di.RegisterToken(c, reliabilityDI.Supervisor, func(sr di.ServiceRegistry) *app.Supervisor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sup, err := app.NewSupervisor(app.SupervisorConfig{
			Interval:     cfg.Reliability.CheckInterval,
			ErrorBackoff: cfg.Reliability.ErrorBackoff,
		},
			reliabilityDI.GetMonitor(sr),
			reliabilityDI.GetRecovery(sr),
			riskDI.GetGate(sr),
			safetyDI.GetGate(sr),
			log,
		)
		if err != nil {
			panic("failed to create supervisor: " + err.Error())
		}
		return sup
	})

	return nil
}

// Startup registers service probes and starts the supervisor loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	monitor := reliabilityDI.GetMonitor(sr)

	chain := chainDI.GetChainService(sr)
	monitor.RegisterProbe("chain_subscription", func(context.Context) (domain.Health, map[string]any) {
		state := chain.ConnectionState()
		switch state {
		case chainDomain.StateConnected:
			return domain.HealthHealthy, map[string]any{"state": state}
		case chainDomain.StateReconnecting, chainDomain.StateConnecting:
			return domain.HealthDegraded, map[string]any{"state": state}
		default:
			return domain.HealthCritical, map[string]any{"state": state}
		}
	})

	if exchange, ok := pricingDI.GetExchangeSource(sr).(interface{ IsConnected() bool }); ok {
		monitor.RegisterProbe("exchange_stream", func(context.Context) (domain.Health, map[string]any) {
			if exchange.IsConnected() {
				return domain.HealthHealthy, map[string]any{"connected": true}
			}
			// REST fallback still serves prices.
			return domain.HealthDegraded, map[string]any{"connected": false}
		})
	}

	consensus := safetyDI.GetConsensus(sr)
	monitor.RegisterProbe("consensus", func(context.Context) (domain.Health, map[string]any) {
		last := consensus.LastReorg()
		if !last.IsZero() && time.Since(last) < reorgGrace {
			return domain.HealthDegraded, map[string]any{"last_reorg": last}
		}
		return domain.HealthHealthy, nil
	})

	sup := reliabilityDI.GetSupervisor(sr)
	mono.Go("reliability.supervisor", sup.Run)

	mono.Logger().Info(ctx, "reliability module started")
	return nil
}

// MonitorConfig maps the reliability section onto monitor thresholds.
func MonitorConfig(rc config.ReliabilityConfig) app.MonitorConfig {
	return app.MonitorConfig{
		CPU:            app.Thresholds{Degraded: rc.CPUDegraded, Critical: rc.CPUCritical},
		Memory:         app.Thresholds{Degraded: rc.MemoryDegraded, Critical: rc.MemoryCritical},
		Disk:           app.Thresholds{Degraded: rc.DiskDegraded, Critical: rc.DiskCritical},
		CheckHistory:   rc.CheckHistory,
		MetricsHistory: rc.MetricsHistory,
	}
}
