// Package domain contains health, metrics and recovery types.
package domain

import "time"

// Health grades a component or the whole system.
type Health string

const (
	HealthHealthy  Health = "HEALTHY"
	HealthDegraded Health = "DEGRADED"
	HealthCritical Health = "CRITICAL"
	HealthOffline  Health = "OFFLINE"
)

// Severity orders health values; higher is worse.
func (h Health) Severity() int {
	switch h {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	case HealthCritical:
		return 2
	case HealthOffline:
		return 3
	default:
		return 3
	}
}

// WorseOf returns the more severe of a and b.
func WorseOf(a, b Health) Health {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Grade maps a usage percentage to a component health.
func Grade(value, degraded, critical float64) Health {
	switch {
	case value > critical:
		return HealthCritical
	case value > degraded:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// HealthCheck is one component probe result.
type HealthCheck struct {
	Name      string         `json:"name"`
	Status    Health         `json:"status"`
	CheckedAt time.Time      `json:"last_check"`
	Duration  time.Duration  `json:"duration_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

// Overall derives system health from component checks:
// any CRITICAL (or OFFLINE) component makes the system CRITICAL, more than
// two DEGRADED make it DEGRADED, an empty set is OFFLINE. The result
// depends only on the multiset of statuses.
func Overall(checks []HealthCheck) Health {
	if len(checks) == 0 {
		return HealthOffline
	}
	degraded := 0
	for _, c := range checks {
		switch c.Status {
		case HealthCritical, HealthOffline:
			return HealthCritical
		case HealthDegraded:
			degraded++
		case HealthHealthy:
		}
	}
	if degraded > 2 {
		return HealthDegraded
	}
	return HealthHealthy
}

// SystemMetrics is one resource sample.
type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime_seconds"`
	CPUPercent     float64       `json:"cpu_usage"`
	MemoryPercent  float64       `json:"memory_usage"`
	DiskPercent    float64       `json:"disk_usage"`
	ActiveTrades   int           `json:"active_trades"`
	ErrorsLastHour int           `json:"errors_last_hour"`
	SampledAt      time.Time     `json:"sampled_at"`
}
