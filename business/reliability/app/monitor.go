package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashguard/business/reliability/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashguard/business/reliability"
	meterName  = "github.com/fd1az/flashguard/business/reliability"
)

// Component check names.
const (
	CheckCPU      = "cpu"
	CheckMemory   = "memory"
	CheckDisk     = "disk"
	CheckNetwork  = "network"
	CheckServices = "services"
)

// Thresholds are usage percentages above which a resource degrades.
type Thresholds struct {
	Degraded float64
	Critical float64
}

// MonitorConfig tunes the health monitor.
type MonitorConfig struct {
	CPU            Thresholds
	Memory         Thresholds
	Disk           Thresholds
	ProbeTimeout   time.Duration
	SlowNetwork    time.Duration // RPC latency above this degrades the network check
	CheckHistory   int
	MetricsHistory int
}

// DefaultMonitorConfig returns production thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CPU:            Thresholds{Degraded: 70, Critical: 90},
		Memory:         Thresholds{Degraded: 80, Critical: 90},
		Disk:           Thresholds{Degraded: 85, Critical: 95},
		ProbeTimeout:   5 * time.Second,
		SlowNetwork:    time.Second,
		CheckHistory:   10,
		MetricsHistory: 100,
	}
}

// Monitor runs component checks and keeps a bounded history.
type Monitor struct {
	config  MonitorConfig
	sampler ResourceSampler
	network Reachability
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	started time.Time
	now     func() time.Time

	mu      sync.RWMutex
	probes  map[string]ProbeFunc
	checks  []domain.HealthCheck
	metrics []domain.SystemMetrics
	overall domain.Health

	healthGauge metric.Int64Gauge
}

// NewMonitor creates a monitor. network may be nil, in which case the
// network check reports OFFLINE.
func NewMonitor(cfg MonitorConfig, sampler ResourceSampler, network Reachability, log logger.LoggerInterface) (*Monitor, error) {
	def := DefaultMonitorConfig()
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.SlowNetwork <= 0 {
		cfg.SlowNetwork = def.SlowNetwork
	}
	if cfg.CheckHistory <= 0 {
		cfg.CheckHistory = def.CheckHistory
	}
	if cfg.MetricsHistory <= 0 {
		cfg.MetricsHistory = def.MetricsHistory
	}

	gauge, err := otel.Meter(meterName).Int64Gauge(
		"reliability_health_level",
		metric.WithDescription("Overall health severity: 0 healthy, 1 degraded, 2 critical, 3 offline"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Monitor{
		config:      cfg,
		sampler:     sampler,
		network:     network,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		started:     time.Now(),
		now:         time.Now,
		probes:      make(map[string]ProbeFunc),
		overall:     domain.HealthOffline,
		healthGauge: gauge,
	}, nil
}

// WithClock replaces the time source.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	m.started = now()
	return m
}

// RegisterProbe adds a service liveness probe.
func (m *Monitor) RegisterProbe(name string, probe ProbeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
}

// Run performs every component check concurrently and returns the
// overall health. Check failures are folded into statuses; the error is
// reserved for a cancelled context.
func (m *Monitor) Run(ctx context.Context) (domain.Health, error) {
	ctx, span := m.tracer.Start(ctx, "reliability.checks")
	defer span.End()

	var (
		cpu, mem, disk domain.HealthCheck
		network        domain.HealthCheck
		services       domain.HealthCheck
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cpu = m.resource(gctx, CheckCPU, m.sampler.CPUPercent, m.config.CPU)
		return nil
	})
	g.Go(func() error {
		mem = m.resource(gctx, CheckMemory, m.sampler.MemoryPercent, m.config.Memory)
		return nil
	})
	g.Go(func() error {
		disk = m.resource(gctx, CheckDisk, m.sampler.DiskPercent, m.config.Disk)
		return nil
	})
	g.Go(func() error {
		network = m.checkNetwork(gctx)
		return nil
	})
	g.Go(func() error {
		services = m.checkServices(gctx)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.HealthOffline, err
	}

	checks := []domain.HealthCheck{cpu, mem, disk, network, services}
	overall := domain.Overall(checks)

	sample := domain.SystemMetrics{
		Uptime:        m.now().Sub(m.started),
		CPUPercent:    percent(cpu),
		MemoryPercent: percent(mem),
		DiskPercent:   percent(disk),
		SampledAt:     m.now(),
	}

	m.mu.Lock()
	if len(checks) > m.config.CheckHistory {
		checks = checks[len(checks)-m.config.CheckHistory:]
	}
	m.checks = checks
	m.metrics = append(m.metrics, sample)
	if len(m.metrics) > m.config.MetricsHistory {
		m.metrics = append(m.metrics[:0:0], m.metrics[len(m.metrics)-m.config.MetricsHistory:]...)
	}
	m.overall = overall
	m.mu.Unlock()

	m.healthGauge.Record(ctx, int64(overall.Severity()))
	span.SetAttributes(attribute.String("health", string(overall)))
	return overall, nil
}

func (m *Monitor) resource(ctx context.Context, name string, sample func(context.Context) (float64, error), t Thresholds) domain.HealthCheck {
	start := m.now()
	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	value, err := sample(ctx)
	hc := domain.HealthCheck{Name: name, CheckedAt: start, Duration: m.now().Sub(start)}
	if err != nil {
		m.logger.Warn(ctx, "resource sample failed", "check", name, "error", err)
		hc.Status = domain.HealthDegraded
		hc.Details = map[string]any{"error": err.Error()}
		return hc
	}
	hc.Status = domain.Grade(value, t.Degraded, t.Critical)
	hc.Details = map[string]any{"usage": value}
	return hc
}

func (m *Monitor) checkNetwork(ctx context.Context) domain.HealthCheck {
	start := m.now()
	hc := domain.HealthCheck{Name: CheckNetwork, CheckedAt: start}
	if m.network == nil {
		hc.Status = domain.HealthOffline
		return hc
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	head, err := m.network.BlockNumber(ctx)
	hc.Duration = m.now().Sub(start)
	latency := hc.Duration.Milliseconds()
	switch {
	case err != nil:
		hc.Status = domain.HealthCritical
		hc.Details = map[string]any{"error": err.Error(), "latency_ms": latency}
	case hc.Duration > m.config.SlowNetwork:
		hc.Status = domain.HealthDegraded
		hc.Details = map[string]any{"head": head, "latency_ms": latency}
	default:
		hc.Status = domain.HealthHealthy
		hc.Details = map[string]any{"head": head, "latency_ms": latency}
	}
	return hc
}

// checkServices reports the worst registered probe.
func (m *Monitor) checkServices(ctx context.Context) domain.HealthCheck {
	start := m.now()

	m.mu.RLock()
	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	probes := make(map[string]ProbeFunc, len(m.probes))
	for k, v := range m.probes {
		probes[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	status := domain.HealthHealthy
	details := make(map[string]any, len(names))
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		h, d := probes[name](pctx)
		cancel()
		status = domain.WorseOf(status, h)
		entry := map[string]any{"status": h}
		for k, v := range d {
			entry[k] = v
		}
		details[name] = entry
	}

	return domain.HealthCheck{
		Name:      CheckServices,
		Status:    status,
		CheckedAt: start,
		Duration:  m.now().Sub(start),
		Details:   details,
	}
}

func percent(hc domain.HealthCheck) float64 {
	v, _ := hc.Details["usage"].(float64)
	return v
}

// Overall returns the health computed by the last run.
func (m *Monitor) Overall() domain.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overall
}

// Checks returns the component checks of the last run.
func (m *Monitor) Checks() []domain.HealthCheck {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.HealthCheck, len(m.checks))
	copy(out, m.checks)
	return out
}

// LatestMetrics returns the newest resource sample, if any.
func (m *Monitor) LatestMetrics() (domain.SystemMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.metrics) == 0 {
		return domain.SystemMetrics{}, false
	}
	return m.metrics[len(m.metrics)-1], true
}

// MetricsHistory returns the retained samples, oldest first.
func (m *Monitor) MetricsHistory() []domain.SystemMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SystemMetrics, len(m.metrics))
	copy(out, m.metrics)
	return out
}

// Uptime is the time since the monitor was created.
func (m *Monitor) Uptime() time.Duration {
	return m.now().Sub(m.started)
}
