package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/fd1az/flashguard/business/safety/domain"
)

// SimulationConfig tunes simulation accuracy tracking.
type SimulationConfig struct {
	Window            int
	MinSamples        int
	MinSuccessRate    float64
	MinMatchRate      float64
	GasLimitThreshold float64 // fraction of gas limit that counts as revert risk
}

// DefaultSimulationConfig returns the production settings.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Window:            100,
		MinSamples:        10,
		MinSuccessRate:    0.8,
		MinMatchRate:      0.9,
		GasLimitThreshold: 0.95,
	}
}

type simRecord struct {
	simulated bool
	actual    *bool
}

// SimulationCheck tracks how well simulations predict execution.
type SimulationCheck struct {
	cfg SimulationConfig

	mu      sync.Mutex
	records []simRecord
}

// NewSimulationCheck creates the check.
func NewSimulationCheck(cfg SimulationConfig) *SimulationCheck {
	if cfg.Window < 1 {
		cfg.Window = 100
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	return &SimulationCheck{cfg: cfg}
}

func (s *SimulationCheck) Name() string { return domain.CheckSimulation }

// Record adds an outcome pair. actual is nil when the trade was not executed.
func (s *SimulationCheck) Record(simulated bool, actual *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, simRecord{simulated: simulated, actual: actual})
	if len(s.records) > s.cfg.Window {
		s.records = append(s.records[:0], s.records[len(s.records)-s.cfg.Window:]...)
	}
}

// Rates returns the simulation success rate and the sim/exec match rate
// over the window. ok is false until MinSamples records exist; matchKnown
// is false when no record has an execution outcome.
func (s *SimulationCheck) Rates() (success, match float64, ok, matchKnown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) < s.cfg.MinSamples {
		return 0, 0, false, false
	}
	var succeeded, matched, withActual int
	for _, r := range s.records {
		if r.simulated {
			succeeded++
		}
		if r.actual != nil {
			withActual++
			if *r.actual == r.simulated {
				matched++
			}
		}
	}
	success = float64(succeeded) / float64(len(s.records))
	if withActual > 0 {
		match = float64(matched) / float64(withActual)
		matchKnown = true
	}
	return success, match, true, matchKnown
}

// Check judges the rolling window, and the context's own simulation
// outcome when present.
func (s *SimulationCheck) Check(_ context.Context, sc *domain.Context) domain.CheckResult {
	var issues, warnings []string

	if sc != nil && sc.Simulation != nil {
		sim := sc.Simulation
		if sim.Reverted || !sim.Success {
			issues = append(issues, "SIMULATION REVERTED: bundle failed in simulation")
		}
		if sim.GasLimit > 0 && float64(sim.GasUsed) > float64(sim.GasLimit)*s.cfg.GasLimitThreshold {
			warnings = append(warnings, fmt.Sprintf("REVERT RISK: gas used %d is %.1f%% of limit %d",
				sim.GasUsed, float64(sim.GasUsed)/float64(sim.GasLimit)*100, sim.GasLimit))
		}
	}

	success, match, ok, matchKnown := s.Rates()
	if ok {
		if success < s.cfg.MinSuccessRate {
			issues = append(issues, fmt.Sprintf("LOW SIMULATION ACCURACY: %.1f%% success rate", success*100))
		}
		if matchKnown && match < s.cfg.MinMatchRate {
			warnings = append(warnings, fmt.Sprintf("SIM/EXEC MISMATCH: only %.1f%% match", match*100))
		}
	}

	s.mu.Lock()
	n := len(s.records)
	s.mu.Unlock()
	return domain.NewResult(domain.CheckSimulation, issues, warnings).With("simulations", n)
}
