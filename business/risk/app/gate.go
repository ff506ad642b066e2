// Package app contains the risk gate: capital limits, trade slots and the
// emergency stop that every other component defers to.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/flashguard/business/risk/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/ratelimit"
)

const (
	meterName = "github.com/fd1az/flashguard/business/risk"

	maxStoredAlerts = 100
	recentAlerts    = 10
)

// Rejection reasons returned by Allow.
const (
	ReasonEmergencyStop  = "Emergency stop active"
	ReasonDisabled       = "Trading temporarily disabled due to risk limits"
	ReasonLoanLimit      = "Loan amount exceeds maximum limit"
	ReasonDailyLoss      = "Daily loss limit exceeded"
	ReasonHourlyLoss     = "Hourly loss limit exceeded"
	ReasonBlockLoss      = "Per-block loss limit exceeded"
	reasonConcurrentTmpl = "Maximum concurrent trades (%d) reached"
)

// Config holds the gate limits.
type Config struct {
	MaxConcurrentTrades int
	MaxDailyLoss        decimal.Decimal
	MaxLossPerHour      decimal.Decimal
	MaxLossPerBlock     decimal.Decimal
	BlockWindow         time.Duration
	MaxLoanAmount       decimal.Decimal
	MaxErrorsBeforeStop int
	ErrorTimeWindow     time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTrades: 3,
		MaxDailyLoss:        decimal.NewFromInt(10000),
		MaxLossPerHour:      decimal.NewFromInt(5000),
		MaxLossPerBlock:     decimal.NewFromInt(1000),
		BlockWindow:         12 * time.Second,
		MaxLoanAmount:       decimal.NewFromInt(100000),
		MaxErrorsBeforeStop: 10,
		ErrorTimeWindow:     time.Hour,
	}
}

type lossEvent struct {
	at     time.Time
	amount decimal.Decimal
}

type gateMetrics struct {
	trades         metric.Int64Counter
	emergencyStops metric.Int64Counter
	dailyLoss      metric.Float64Gauge
	activeTrades   metric.Int64UpDownCounter
}

// Gate owns the risk ledger. All methods are safe for concurrent use.
type Gate struct {
	cfg    Config
	logger logger.LoggerInterface
	now    func() time.Time

	mu     sync.Mutex
	state  domain.State
	losses []lossEvent
	errors *ratelimit.Window
	alerts []domain.Alert

	metrics *gateMetrics
}

// NewGate creates a gate with trading allowed.
func NewGate(cfg Config, log logger.LoggerInterface) (*Gate, error) {
	if cfg.MaxConcurrentTrades < 1 {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "max concurrent trades must be positive")
	}
	if cfg.BlockWindow <= 0 {
		cfg.BlockWindow = 12 * time.Second
	}
	if cfg.ErrorTimeWindow <= 0 {
		cfg.ErrorTimeWindow = time.Hour
	}
	if cfg.MaxErrorsBeforeStop < 1 {
		cfg.MaxErrorsBeforeStop = 10
	}

	g := &Gate{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		errors: ratelimit.NewWindow(cfg.ErrorTimeWindow),
	}
	g.state = domain.State{TradingAllowed: true, LastReset: g.now()}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

// WithClock replaces the gate clock. Used by tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	g.errors = g.errors.WithClock(now)
	g.state.LastReset = now()
	return g
}

func (g *Gate) initMetrics() error {
	meter := otel.Meter(meterName)
	m := &gateMetrics{}
	var err error

	m.trades, err = meter.Int64Counter(
		"risk_trades_total",
		metric.WithDescription("Recorded trade results"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		return err
	}

	m.emergencyStops, err = meter.Int64Counter(
		"risk_emergency_stops_total",
		metric.WithDescription("Emergency stops triggered"),
	)
	if err != nil {
		return err
	}

	m.dailyLoss, err = meter.Float64Gauge(
		"risk_daily_loss_usd",
		metric.WithDescription("Accumulated loss since the last daily reset"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return err
	}

	m.activeTrades, err = meter.Int64UpDownCounter(
		"risk_active_trades",
		metric.WithDescription("Trades currently holding a slot"),
	)
	if err != nil {
		return err
	}

	g.metrics = m
	return nil
}

// Allow reports whether a trade of the given USD size may proceed.
// It reads state only; calling it twice without intervening mutation
// returns the same answer.
func (g *Gate) Allow(amount decimal.Decimal) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.state.EmergencyStopped:
		return false, ReasonEmergencyStop
	case !g.state.TradingAllowed:
		return false, ReasonDisabled
	case amount.GreaterThan(g.cfg.MaxLoanAmount):
		return false, ReasonLoanLimit
	case g.state.DailyLoss.GreaterThanOrEqual(g.cfg.MaxDailyLoss):
		return false, ReasonDailyLoss
	case g.state.ActiveTrades >= g.cfg.MaxConcurrentTrades:
		return false, fmt.Sprintf(reasonConcurrentTmpl, g.cfg.MaxConcurrentTrades)
	}

	now := g.now()
	if g.cfg.MaxLossPerHour.IsPositive() && g.lossSince(now.Add(-time.Hour)).GreaterThanOrEqual(g.cfg.MaxLossPerHour) {
		return false, ReasonHourlyLoss
	}
	if g.cfg.MaxLossPerBlock.IsPositive() && g.lossSince(now.Add(-g.cfg.BlockWindow)).GreaterThanOrEqual(g.cfg.MaxLossPerBlock) {
		return false, ReasonBlockLoss
	}
	return true, ""
}

// lossSince sums losses strictly after cutoff. Caller holds mu.
func (g *Gate) lossSince(cutoff time.Time) decimal.Decimal {
	total := decimal.Zero
	for i := len(g.losses) - 1; i >= 0; i-- {
		if !g.losses[i].at.After(cutoff) {
			break
		}
		total = total.Add(g.losses[i].amount)
	}
	return total
}

// Acquire takes a trade slot. The returned release func is safe to call
// more than once; only the first call frees the slot.
func (g *Gate) Acquire() (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.ActiveTrades >= g.cfg.MaxConcurrentTrades {
		return nil, apperror.New(apperror.CodeRiskLimitBreached,
			apperror.WithContext(fmt.Sprintf(reasonConcurrentTmpl, g.cfg.MaxConcurrentTrades)))
	}
	g.state.ActiveTrades++
	g.metrics.activeTrades.Add(context.Background(), 1)

	var once sync.Once
	return func() {
		once.Do(g.release)
	}, nil
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.ActiveTrades > 0 {
		g.state.ActiveTrades--
		g.metrics.activeTrades.Add(context.Background(), -1)
	}
}

// RecordResult books a finished trade. A negative profit counts as loss.
func (g *Gate) RecordResult(ctx context.Context, success bool, profit decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.state.TotalTrades++
	result := "failed"
	if success {
		g.state.SuccessfulTrades++
		result = "success"
	} else {
		g.state.FailedTrades++
	}
	g.metrics.trades.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	if success && profit.IsPositive() {
		g.state.DailyProfit = g.state.DailyProfit.Add(profit)
	}
	if profit.IsNegative() {
		loss := profit.Abs()
		g.state.DailyLoss = g.state.DailyLoss.Add(loss)
		g.losses = append(g.losses, lossEvent{at: now, amount: loss})
		g.pruneLosses(now)
	}

	dailyLoss, _ := g.state.DailyLoss.Float64()
	g.metrics.dailyLoss.Record(ctx, dailyLoss)

	if profit.IsNegative() && !g.state.EmergencyStopped && g.state.DailyLoss.GreaterThanOrEqual(g.cfg.MaxDailyLoss) {
		g.addAlert(domain.LevelCritical, "DAILY_LIMIT",
			fmt.Sprintf("Daily loss $%s reached limit $%s", g.state.DailyLoss.StringFixed(2), g.cfg.MaxDailyLoss.StringFixed(2)),
			"Emergency stop")
		g.stopLocked(ctx, ReasonDailyLoss)
	}
}

// pruneLosses drops events older than the hourly window. Caller holds mu.
func (g *Gate) pruneLosses(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(g.losses) && !g.losses[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		g.losses = append(g.losses[:0], g.losses[i:]...)
	}
}

// RecordError counts an operational error. Reaching the error budget
// within the window triggers an emergency stop.
func (g *Gate) RecordError(ctx context.Context, kind, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := g.errors.Add()
	g.logger.Warn(ctx, "trade error recorded", "kind", kind, "message", msg, "errors_in_window", count)

	if count >= g.cfg.MaxErrorsBeforeStop {
		g.stopLocked(ctx, fmt.Sprintf("Too many errors: %d in %s", count, g.cfg.ErrorTimeWindow))
	}
}

// EmergencyStop halts trading until an operator calls Enable. Stopping an
// already stopped gate is a no-op.
func (g *Gate) EmergencyStop(ctx context.Context, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked(ctx, reason)
}

// stopLocked latches the emergency stop. Caller holds mu.
func (g *Gate) stopLocked(ctx context.Context, reason string) {
	if g.state.EmergencyStopped {
		return
	}
	g.state.EmergencyStopped = true
	g.state.TradingAllowed = false
	g.state.StopReason = reason
	g.addAlert(domain.LevelCritical, "EMERGENCY_STOP", reason, "All trading halted")
	g.metrics.emergencyStops.Add(ctx, 1)

	g.logger.Error(ctx, "EMERGENCY STOP", "reason", reason)
}

// Enable is the operator re-enable. It clears the emergency stop and
// the error window.
func (g *Gate) Enable(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasStopped := g.state.EmergencyStopped
	g.state.EmergencyStopped = false
	g.state.TradingAllowed = true
	g.state.StopReason = ""
	g.errors.Reset()

	g.logger.Info(ctx, "trading re-enabled", "was_emergency_stopped", wasStopped)
}

// Disable turns trading off without an emergency stop.
func (g *Gate) Disable(ctx context.Context, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.TradingAllowed = false
	g.state.StopReason = reason
	g.addAlert(domain.LevelHigh, "DISABLED", reason, "Trading disabled")

	g.logger.Warn(ctx, "trading disabled", "reason", reason)
}

// ResetDaily zeroes the daily ledger. An emergency stop survives the reset.
func (g *Gate) ResetDaily(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DailyLoss = decimal.Zero
	g.state.DailyProfit = decimal.Zero
	g.state.TotalTrades = 0
	g.state.SuccessfulTrades = 0
	g.state.FailedTrades = 0
	g.state.LastReset = g.now()
	if !g.state.EmergencyStopped {
		g.state.TradingAllowed = true
		g.state.StopReason = ""
	}

	g.logger.Info(ctx, "daily risk counters reset", "emergency_stopped", g.state.EmergencyStopped)
}

// EmergencyStopped reports whether the gate is latched.
func (g *Gate) EmergencyStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.EmergencyStopped
}

// Snapshot returns a copy of the ledger with derived values.
func (g *Gate) Snapshot() domain.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	snap := domain.Snapshot{
		State:      g.state,
		HourlyLoss: g.lossSince(now.Add(-time.Hour)),
		BlockLoss:  g.lossSince(now.Add(-g.cfg.BlockWindow)),
		ErrorCount: g.errors.Count(),
		RiskLevel:  domain.LevelFor(g.state.DailyLoss, g.cfg.MaxDailyLoss),
	}
	if g.state.TotalTrades > 0 {
		snap.WinRate = float64(g.state.SuccessfulTrades) / float64(g.state.TotalTrades)
	}

	start := len(g.alerts) - recentAlerts
	if start < 0 {
		start = 0
	}
	snap.RecentAlerts = append([]domain.Alert(nil), g.alerts[start:]...)
	return snap
}

// addAlert appends to the bounded alert log. Caller holds mu.
func (g *Gate) addAlert(level domain.Level, category, msg, action string) {
	g.alerts = append(g.alerts, domain.Alert{
		ID:        uuid.NewString(),
		Level:     level,
		Category:  category,
		Message:   msg,
		Action:    action,
		Timestamp: g.now(),
	})
	if len(g.alerts) > maxStoredAlerts {
		g.alerts = append(g.alerts[:0], g.alerts[len(g.alerts)-maxStoredAlerts:]...)
	}
}
