package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/flashguard/business/reliability/domain"
	riskDomain "github.com/fd1az/flashguard/business/risk/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

// SupervisorConfig tunes the supervisor loop.
type SupervisorConfig struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	ActionBuffer int
}

// DefaultSupervisorConfig returns production settings.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{Interval: 30 * time.Second, ErrorBackoff: 10 * time.Second, ActionBuffer: 8}
}

// Snapshot is the JSON status document.
type Snapshot struct {
	OverallHealth domain.Health         `json:"overall_health"`
	Uptime        string                `json:"uptime"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Checks        []domain.HealthCheck  `json:"checks"`
	Metrics       *domain.SystemMetrics `json:"metrics,omitempty"`
	Risk          riskDomain.Snapshot   `json:"risk"`
	Recovery      domain.RecoveryStats  `json:"recovery"`
	Safety        *safetyDomain.Stats   `json:"safety,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// Supervisor periodically checks health, runs auto-recovery and halts
// trading through the risk ledger when recovery is exhausted.
type Supervisor struct {
	config   SupervisorConfig
	monitor  *Monitor
	recovery *AutoRecovery
	risk     RiskLedger
	safety   SafetyStats
	logger   logger.LoggerInterface

	actions chan domain.RecoveryAction

	actionCounter metric.Int64Counter
}

// NewSupervisor wires the loop. safety may be nil.
func NewSupervisor(cfg SupervisorConfig, monitor *Monitor, recovery *AutoRecovery, risk RiskLedger, safety SafetyStats, log logger.LoggerInterface) (*Supervisor, error) {
	def := DefaultSupervisorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.ActionBuffer <= 0 {
		cfg.ActionBuffer = def.ActionBuffer
	}

	counter, err := otel.Meter(meterName).Int64Counter(
		"reliability_recovery_actions_total",
		metric.WithDescription("Recovery actions issued by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Supervisor{
		config:        cfg,
		monitor:       monitor,
		recovery:      recovery,
		risk:          risk,
		safety:        safety,
		logger:        log,
		actions:       make(chan domain.RecoveryAction, cfg.ActionBuffer),
		actionCounter: counter,
	}, nil
}

// Actions delivers issued recovery actions. Actions are dropped when the
// buffer is full.
func (s *Supervisor) Actions() <-chan domain.RecoveryAction {
	return s.actions
}

// Run loops until ctx is done. A failed tick backs off before the next one.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info(ctx, "reliability supervisor started", "interval", s.config.Interval.String())
	for {
		wait := s.config.Interval
		if err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error(ctx, "health tick failed", "error", err)
			wait = s.config.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "reliability supervisor stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// Tick runs one check and recovery round.
func (s *Supervisor) Tick(ctx context.Context) error {
	health, err := s.monitor.Run(ctx)
	if err != nil {
		return err
	}

	action := s.recovery.Decide(ctx, health)
	if action == domain.ActionNone {
		return nil
	}

	s.actionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(action))))
	s.logger.Warn(ctx, "recovery action issued", "action", string(action), "health", string(health))

	if action == domain.ActionEmergencyStop && s.risk != nil && !s.risk.Snapshot().EmergencyStopped {
		s.risk.EmergencyStop(ctx, fmt.Sprintf("system health %s, recovery retries exhausted", health))
	}

	select {
	case s.actions <- action:
	default:
		s.logger.Warn(ctx, "recovery action dropped, consumer not keeping up", "action", string(action))
	}
	return nil
}

// Snapshot assembles the status document.
func (s *Supervisor) Snapshot() Snapshot {
	uptime := s.monitor.Uptime()
	snap := Snapshot{
		OverallHealth: s.monitor.Overall(),
		Uptime:        formatUptime(uptime),
		UptimeSeconds: uptime.Seconds(),
		Checks:        s.monitor.Checks(),
		Recovery:      s.recovery.Stats(),
		Timestamp:     s.monitor.now(),
	}
	if m, ok := s.monitor.LatestMetrics(); ok {
		snap.Metrics = &m
	}
	if s.risk != nil {
		snap.Risk = s.risk.Snapshot()
		if m := snap.Metrics; m != nil {
			m.ActiveTrades = snap.Risk.ActiveTrades
			m.ErrorsLastHour = snap.Risk.ErrorCount
		}
	}
	if s.safety != nil {
		stats := s.safety.Stats()
		snap.Safety = &stats
	}
	return snap
}

// Healthy reports whether the last observed health was HEALTHY.
func (s *Supervisor) Healthy() bool {
	return s.monitor.Overall() == domain.HealthHealthy
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, d/time.Second)
}
