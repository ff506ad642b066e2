package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

type fixedCheck struct {
	name   string
	result domain.CheckResult
}

func (f fixedCheck) Name() string { return f.name }

func (f fixedCheck) Check(context.Context, *domain.Context) domain.CheckResult { return f.result }

type recordingEscalator struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingEscalator) EmergencyStop(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func TestGate_AggregatesWorstLevel(t *testing.T) {
	g, err := NewGate(logger.NewNop(), nil, 0,
		fixedCheck{"a", domain.NewResult("a", nil, []string{"slow"})},
		fixedCheck{"b", domain.Safe("b")},
	)
	require.NoError(t, err)

	rep := g.Check(context.Background(), &domain.Context{OpportunityID: "x"})
	assert.Equal(t, domain.LevelWarning, rep.Level)
	assert.True(t, rep.Passed())
	assert.Len(t, rep.Checks, 2)
	assert.Equal(t, []string{"slow"}, rep.Warnings)
}

func TestGate_RejectUpdatesStats(t *testing.T) {
	g, err := NewGate(logger.NewNop(), nil, 0,
		fixedCheck{"a", domain.NewResult("a", []string{"REORG DETECTED"}, nil)},
	)
	require.NoError(t, err)

	rep := g.Check(context.Background(), &domain.Context{})
	assert.Equal(t, domain.LevelReject, rep.Level)
	assert.False(t, rep.Passed())

	stats := g.Stats()
	assert.Equal(t, int64(1), stats.TotalChecks)
	assert.Equal(t, int64(1), stats.RejectedTrades)
	assert.InDelta(t, 0.0, stats.SuccessRate, 1e-9)
}

func TestGate_StatsEmpty(t *testing.T) {
	g, err := NewGate(logger.NewNop(), nil, 0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, g.Stats().SuccessRate, 1e-9)
}

func TestGate_EscalatesAfterConsecutiveSystemicRejections(t *testing.T) {
	esc := &recordingEscalator{}
	reject := fixedCheck{domain.CheckNetwork, domain.NewResult(domain.CheckNetwork, []string{"RPC UNREACHABLE"}, nil)}
	g, err := NewGate(logger.NewNop(), esc, 3, reject)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		g.Check(context.Background(), nil)
	}
	assert.Len(t, esc.reasons, 1)
	assert.Contains(t, esc.reasons[0], "3 consecutive systemic rejections")
}

func TestGate_PerOpportunityRejectionsNeverEscalate(t *testing.T) {
	tests := []struct {
		check string
		issue string
	}{
		{domain.CheckOracle, "Stale price data for WETH"},
		{domain.CheckSimulation, "Simulation is stale"},
		{domain.CheckConsensus, "REORG DETECTED"},
		{domain.CheckTransaction, "NONCE CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.check, func(t *testing.T) {
			esc := &recordingEscalator{}
			reject := fixedCheck{tt.check, domain.NewResult(tt.check, []string{tt.issue}, nil)}
			g, err := NewGate(logger.NewNop(), esc, 50, reject)
			require.NoError(t, err)

			for i := 0; i < 60; i++ {
				g.Check(context.Background(), nil)
			}
			assert.Empty(t, esc.reasons)
			assert.Equal(t, int64(60), g.Stats().RejectedTrades)
		})
	}
}

func TestGate_StaleRejectionsDoNotBreakSystemicRun(t *testing.T) {
	esc := &recordingEscalator{}
	network := &flipCheck{name: domain.CheckNetwork}
	oracle := &flipCheck{name: domain.CheckOracle, pass: true}
	g, err := NewGate(logger.NewNop(), esc, 3, oracle, network)
	require.NoError(t, err)

	g.Check(context.Background(), nil)
	g.Check(context.Background(), nil)
	network.pass, oracle.pass = true, false
	g.Check(context.Background(), nil)
	assert.Empty(t, esc.reasons)

	network.pass = false
	g.Check(context.Background(), nil)
	assert.Len(t, esc.reasons, 1)
}

func TestGate_PassResetsEscalationCounter(t *testing.T) {
	esc := &recordingEscalator{}
	flip := &flipCheck{name: domain.CheckBuilder}
	g, err := NewGate(logger.NewNop(), esc, 3, flip)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		flip.pass = i%2 == 0
		g.Check(context.Background(), nil)
	}
	assert.Empty(t, esc.reasons)
}

type flipCheck struct {
	name string
	pass bool
}

func (f *flipCheck) Name() string { return f.name }

func (f *flipCheck) Check(context.Context, *domain.Context) domain.CheckResult {
	if f.pass {
		return domain.Safe(f.name)
	}
	return domain.NewResult(f.name, []string{"no"}, nil)
}
