// Package app contains the health monitor, the recovery state machine and
// the supervisor loop that ties them to the risk gate.
package app

import (
	"context"

	"github.com/fd1az/flashguard/business/reliability/domain"
	riskDomain "github.com/fd1az/flashguard/business/risk/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
)

// ResourceSampler reports host usage as percentages.
type ResourceSampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context) (float64, error)
}

// Reachability is probed for the network check.
type Reachability interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ProbeFunc reports the liveness of one service.
type ProbeFunc func(ctx context.Context) (domain.Health, map[string]any)

// RiskLedger is the slice of the risk gate the supervisor drives.
type RiskLedger interface {
	Snapshot() riskDomain.Snapshot
	EmergencyStop(ctx context.Context, reason string)
}

// SafetyStats exposes the safety gate counters.
type SafetyStats interface {
	Stats() safetyDomain.Stats
}
