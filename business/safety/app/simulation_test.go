package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fd1az/flashguard/business/safety/domain"
)

func boolp(b bool) *bool { return &b }

func TestSimulation_NotJudgedBelowMinSamples(t *testing.T) {
	s := NewSimulationCheck(DefaultSimulationConfig())
	for i := 0; i < 9; i++ {
		s.Record(false, nil)
	}
	assert.Equal(t, domain.LevelSafe, s.Check(context.Background(), nil).Level)
}

func TestSimulation_LowSuccessRateRejects(t *testing.T) {
	s := NewSimulationCheck(DefaultSimulationConfig())
	for i := 0; i < 7; i++ {
		s.Record(true, nil)
	}
	for i := 0; i < 3; i++ {
		s.Record(false, nil)
	}

	res := s.Check(context.Background(), nil)
	assert.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "70.0%")
}

func TestSimulation_MismatchWarns(t *testing.T) {
	s := NewSimulationCheck(DefaultSimulationConfig())
	for i := 0; i < 8; i++ {
		s.Record(true, boolp(true))
	}
	s.Record(true, boolp(false))
	s.Record(true, boolp(false))

	res := s.Check(context.Background(), nil)
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "SIM/EXEC MISMATCH")
}

func TestSimulation_WindowSlides(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Window = 10
	s := NewSimulationCheck(cfg)
	for i := 0; i < 10; i++ {
		s.Record(false, nil)
	}
	for i := 0; i < 10; i++ {
		s.Record(true, nil)
	}

	success, _, ok, matchKnown := s.Rates()
	assert.True(t, ok)
	assert.False(t, matchKnown)
	assert.InDelta(t, 1.0, success, 1e-9)
}

func TestSimulation_RevertRisk(t *testing.T) {
	s := NewSimulationCheck(DefaultSimulationConfig())

	res := s.Check(context.Background(), &domain.Context{Simulation: &domain.SimulationOutcome{Success: true, GasUsed: 960_000, GasLimit: 1_000_000}})
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "REVERT RISK")

	res = s.Check(context.Background(), &domain.Context{Simulation: &domain.SimulationOutcome{Reverted: true}})
	assert.Equal(t, domain.LevelReject, res.Level)
}
