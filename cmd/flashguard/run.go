package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fd1az/flashguard/business/chain"
	chainDI "github.com/fd1az/flashguard/business/chain/di"
	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/pricing"
	"github.com/fd1az/flashguard/business/profit"
	"github.com/fd1az/flashguard/business/reliability"
	reliabilityDI "github.com/fd1az/flashguard/business/reliability/di"
	"github.com/fd1az/flashguard/business/risk"
	riskDI "github.com/fd1az/flashguard/business/risk/di"
	"github.com/fd1az/flashguard/business/safety"
	"github.com/fd1az/flashguard/business/trading"
	tradingDI "github.com/fd1az/flashguard/business/trading/di"
	"github.com/fd1az/flashguard/business/trading/infra/httpapi"
	"github.com/fd1az/flashguard/internal/apm"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/health"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/metrics"
	"github.com/fd1az/flashguard/internal/monolith"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading gate",
	Long: `Starts the chain and price feeds, the risk, profit and safety gates,
the reliability supervisor and the trading loop, and serves the status API.

Opportunities are accepted on POST /opportunities. With trading.dry_run set
(the default) approved bundles are paper traded instead of dispatched.`,
	RunE: runGate,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("console", false, "Human-readable logs instead of JSON")
}

func runGate(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	console, _ := cmd.Flags().GetBool("console")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := logger.ParseLevel(cfg.App.LogLevel)
	var log *logger.Logger
	if console || cfg.App.LogFormat == "console" {
		log = logger.NewConsole(os.Stderr, level, cfg.App.Name)
	} else {
		log = logger.New(os.Stderr, level, cfg.App.Name, nil)
	}
	defer func() { _ = log.Sync() }()

	log.Info(ctx, "starting flashguard",
		"version", version,
		"environment", cfg.App.Environment,
		"dry_run", cfg.Trading.DryRun,
	)

	if cfg.Telemetry.Enabled {
		tp, err := apm.NewTraceProvider(ctx, apm.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Provider:    apm.Provider(cfg.Telemetry.TraceExporter),
			Endpoint:    traceEndpoint(cfg.Telemetry),
			Headers:     cfg.Telemetry.OTLPHeaders,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() { _ = tp.Stop() }()
		log.Info(ctx, "tracing initialized", "exporter", cfg.Telemetry.TraceExporter)
	}

	mp, err := metrics.NewMetricProvider(ctx, metrics.WithServiceName(cfg.Telemetry.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(ctx, "error releasing resources", "error", err)
		}
	}()

	// Startup order matters: feeds first, the loop last.
	modules := []monolith.Module{
		&chain.Module{},
		&pricing.Module{},
		&risk.Module{},
		&profit.Module{},
		&safety.Module{},
		&reliability.Module{},
		&trading.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	server := statusServer(cfg, mono)
	mono.Go("status.server", server.Run)

	log.Info(ctx, "all modules started", "status_port", cfg.Server.Port)

	err = mono.Wait()
	log.Info(ctx, "shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func statusServer(cfg *config.Config, mono *monolith.App) *health.Server {
	sr := mono.Services()
	supervisor := reliabilityDI.GetSupervisor(sr)
	gate := riskDI.GetGate(sr)
	chainSvc := chainDI.GetChainService(sr)

	server := health.NewServer(health.Config{
		Port:         cfg.Server.Port,
		Version:      version,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, mono.Logger())

	server.RegisterCheck("supervisor", func(context.Context) (bool, string) {
		snap := supervisor.Snapshot()
		return supervisor.Healthy(), string(snap.OverallHealth)
	})
	server.RegisterReadiness("chain", func(context.Context) (bool, string) {
		state := chainSvc.ConnectionState()
		return state == chainDomain.StateConnected, string(state)
	})
	server.RegisterReadiness("trading", func(context.Context) (bool, string) {
		if gate.EmergencyStopped() {
			return false, "emergency stop active"
		}
		return true, ""
	})

	httpapi.NewHandler(supervisor, tradingDI.GetLoop(sr), gate, cfg.Server.AdminToken, mono.Logger()).
		Routes(server.Router())
	return server
}

func traceEndpoint(tc config.TelemetryConfig) string {
	if apm.Provider(tc.TraceExporter) == apm.ZipkinProvider {
		return tc.ZipkinURL
	}
	return tc.OTLPEndpoint
}
