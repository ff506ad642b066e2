package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/risk/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestGate(t *testing.T) (*Gate, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g, err := NewGate(DefaultConfig(), logger.NewNop())
	require.NoError(t, err)
	return g.WithClock(clock.Now), clock
}

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestGate_AllowFreshState(t *testing.T) {
	g, _ := newTestGate(t)

	ok, reason := g.Allow(usd(50000))
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestGate_AllowIsIdempotent(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	g.RecordResult(ctx, false, usd(-400))

	before := g.Snapshot()
	ok1, r1 := g.Allow(usd(1000))
	ok2, r2 := g.Allow(usd(1000))
	after := g.Snapshot()

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, before.State, after.State)
}

func TestGate_LoanLimit(t *testing.T) {
	g, _ := newTestGate(t)

	ok, reason := g.Allow(usd(100001))
	assert.False(t, ok)
	assert.Equal(t, ReasonLoanLimit, reason)

	ok, _ = g.Allow(usd(100000))
	assert.True(t, ok)
}

func TestGate_DailyLossAccumulates(t *testing.T) {
	g, clock := newTestGate(t)
	ctx := context.Background()

	// Spread losses over hours so the hourly and block limits stay clear.
	for i := 0; i < 4; i++ {
		g.RecordResult(ctx, false, usd(-2400))
		clock.Advance(2 * time.Hour)
	}
	snap := g.Snapshot()
	assert.True(t, snap.DailyLoss.Equal(usd(9600)))
	assert.True(t, snap.TradingAllowed)
	assert.Equal(t, domain.LevelCritical, snap.RiskLevel)

	g.RecordResult(ctx, false, usd(-400))
	snap = g.Snapshot()
	assert.True(t, snap.DailyLoss.Equal(usd(10000)))
	assert.False(t, snap.TradingAllowed)
	assert.True(t, snap.EmergencyStopped)
	assert.Equal(t, ReasonDailyLoss, snap.StopReason)

	ok, reason := g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, ReasonEmergencyStop, reason)

	require.Len(t, snap.RecentAlerts, 2)
	assert.Equal(t, "DAILY_LIMIT", snap.RecentAlerts[0].Category)
	assert.Equal(t, "EMERGENCY_STOP", snap.RecentAlerts[1].Category)
}

func TestGate_DailyLossBreachSurvivesReset(t *testing.T) {
	g, clock := newTestGate(t)
	ctx := context.Background()

	for _, loss := range []int64{3000, 4000, 3500} {
		g.RecordResult(ctx, false, usd(-loss))
		clock.Advance(time.Minute)
	}
	require.True(t, g.EmergencyStopped())

	g.ResetDaily(ctx)
	clock.Advance(2 * time.Hour)

	snap := g.Snapshot()
	assert.True(t, snap.DailyLoss.IsZero())
	assert.True(t, snap.EmergencyStopped)
	assert.False(t, snap.TradingAllowed)

	ok, reason := g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, ReasonEmergencyStop, reason)

	g.Enable(ctx)
	ok, _ = g.Allow(usd(10))
	assert.True(t, ok)
}

func TestGate_ConcurrentErrorsStopOnce(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordError(ctx, "rpc", "timeout")
		}()
	}
	wg.Wait()
	g.EmergencyStop(ctx, "manual")

	snap := g.Snapshot()
	require.True(t, snap.EmergencyStopped)
	stops := 0
	for _, a := range snap.RecentAlerts {
		if a.Category == "EMERGENCY_STOP" {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
	assert.Contains(t, snap.StopReason, "Too many errors")
}

func TestGate_ProfitDoesNotCountAsLoss(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	g.RecordResult(ctx, true, usd(250))
	g.RecordResult(ctx, false, usd(-50))

	snap := g.Snapshot()
	assert.True(t, snap.DailyProfit.Equal(usd(250)))
	assert.True(t, snap.DailyLoss.Equal(usd(50)))
	assert.Equal(t, 2, snap.TotalTrades)
	assert.Equal(t, 1, snap.SuccessfulTrades)
	assert.Equal(t, 1, snap.FailedTrades)
	assert.InDelta(t, 0.5, snap.WinRate, 1e-9)
}

func TestGate_BlockAndHourlyWindows(t *testing.T) {
	g, clock := newTestGate(t)
	ctx := context.Background()

	g.RecordResult(ctx, false, usd(-1000))
	ok, reason := g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, ReasonBlockLoss, reason)

	clock.Advance(13 * time.Second)
	ok, _ = g.Allow(usd(10))
	assert.True(t, ok)

	for i := 0; i < 4; i++ {
		clock.Advance(time.Minute)
		g.RecordResult(ctx, false, usd(-1000))
	}
	clock.Advance(time.Minute)
	ok, reason = g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, ReasonHourlyLoss, reason)

	clock.Advance(time.Hour)
	ok, _ = g.Allow(usd(10))
	assert.True(t, ok)
}

func TestGate_ConcurrencySlots(t *testing.T) {
	g, _ := newTestGate(t)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := g.Acquire()
		require.NoError(t, err)
		releases = append(releases, release)
	}

	ok, reason := g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, "Maximum concurrent trades (3) reached", reason)

	_, err := g.Acquire()
	require.Error(t, err)
	assert.Equal(t, apperror.CodeRiskLimitBreached, apperror.GetCode(err))

	releases[0]()
	releases[0]()
	assert.Equal(t, 2, g.Snapshot().ActiveTrades)

	for _, r := range releases[1:] {
		r()
	}
	assert.Equal(t, 0, g.Snapshot().ActiveTrades)
}

func TestGate_ErrorBudgetTriggersEmergencyStop(t *testing.T) {
	g, clock := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		g.RecordError(ctx, "rpc", "timeout")
		clock.Advance(time.Minute)
	}
	assert.False(t, g.EmergencyStopped())

	g.RecordError(ctx, "rpc", "timeout")
	assert.True(t, g.EmergencyStopped())

	ok, reason := g.Allow(usd(10))
	assert.False(t, ok)
	assert.Equal(t, ReasonEmergencyStop, reason)
}

func TestGate_ErrorWindowSlides(t *testing.T) {
	g, clock := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		g.RecordError(ctx, "rpc", "timeout")
	}
	clock.Advance(61 * time.Minute)
	g.RecordError(ctx, "rpc", "timeout")

	assert.False(t, g.EmergencyStopped())
	assert.Equal(t, 1, g.Snapshot().ErrorCount)
}

func TestGate_ResetDailyKeepsEmergencyStop(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	g.RecordResult(ctx, false, usd(-300))
	g.EmergencyStop(ctx, "manual")
	g.ResetDaily(ctx)

	snap := g.Snapshot()
	assert.True(t, snap.DailyLoss.IsZero())
	assert.True(t, snap.EmergencyStopped)
	assert.False(t, snap.TradingAllowed)

	g.Enable(ctx)
	snap = g.Snapshot()
	assert.False(t, snap.EmergencyStopped)
	assert.True(t, snap.TradingAllowed)
	assert.Zero(t, snap.ErrorCount)
}

func TestGate_ResetDailyLiftsDisable(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	g.Disable(ctx, "maintenance")
	ok, _ := g.Allow(usd(10))
	assert.False(t, ok)

	g.ResetDaily(ctx)
	ok, _ = g.Allow(usd(10))
	assert.True(t, ok)
}

func TestGate_SnapshotKeepsLastTenAlerts(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		g.Disable(ctx, "flap")
	}
	snap := g.Snapshot()
	assert.Len(t, snap.RecentAlerts, 10)
	for _, a := range snap.RecentAlerts {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, domain.LevelHigh, a.Level)
	}
}

func TestNewGate_RejectsZeroSlots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTrades = 0
	_, err := NewGate(cfg, logger.NewNop())
	require.Error(t, err)
}
