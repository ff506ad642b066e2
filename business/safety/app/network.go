package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/apperror"
)

// NetworkConfig tunes the RPC probe.
type NetworkConfig struct {
	ProbeTimeout      time.Duration
	MaxLatency        time.Duration
	MaxRequestsPerSec int
}

// DefaultNetworkConfig returns the production settings.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ProbeTimeout:      5 * time.Second,
		MaxLatency:        time.Second,
		MaxRequestsPerSec: 10,
	}
}

// NetworkCheck probes the node for liveness, latency and head regression.
type NetworkCheck struct {
	cfg   NetworkConfig
	probe HeadProbe
	meter RequestMeter
	now   func() time.Time

	mu       sync.Mutex
	lastHead uint64
	latency  time.Duration
}

// NewNetworkCheck creates the check. meter may be nil.
func NewNetworkCheck(cfg NetworkConfig, probe HeadProbe, meter RequestMeter) *NetworkCheck {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &NetworkCheck{cfg: cfg, probe: probe, meter: meter, now: time.Now}
}

func (n *NetworkCheck) Name() string { return domain.CheckNetwork }

// Check issues one eth_blockNumber probe.
func (n *NetworkCheck) Check(ctx context.Context, _ *domain.Context) domain.CheckResult {
	var issues, warnings []string

	// Sample the meter before the probe adds to it.
	if n.meter != nil && n.cfg.MaxRequestsPerSec > 0 {
		if rps := n.meter.RecentRequests(); rps > n.cfg.MaxRequestsPerSec {
			warnings = append(warnings, fmt.Sprintf("RATE LIMIT APPROACHING: %d requests in the last second", rps))
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, n.cfg.ProbeTimeout)
	start := n.now()
	head, err := n.probe.BlockNumber(probeCtx)
	latency := n.now().Sub(start)
	cancel()

	n.mu.Lock()
	n.latency = latency
	prev := n.lastHead
	if err == nil {
		n.lastHead = head
	}
	n.mu.Unlock()

	switch {
	case err != nil && isTimeout(err):
		issues = append(issues, "RPC TIMEOUT")
	case err != nil:
		issues = append(issues, fmt.Sprintf("RPC ERROR: %v", err))
	default:
		if prev > 0 && head+1 < prev {
			issues = append(issues, fmt.Sprintf("RPC DESYNC: head went backwards from %d to %d", prev, head))
		}
		if n.cfg.MaxLatency > 0 && latency > n.cfg.MaxLatency {
			warnings = append(warnings, fmt.Sprintf("HIGH LATENCY: %dms", latency.Milliseconds()))
		}
	}

	return domain.NewResult(domain.CheckNetwork, issues, warnings).
		With("latency_ms", latency.Milliseconds()).
		With("head", head)
}

// Latency returns the last probe latency.
func (n *NetworkCheck) Latency() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.latency
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || apperror.GetCode(err) == apperror.CodeChainTimeout
}
