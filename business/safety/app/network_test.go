package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/safety/domain"
)

type stubProbe struct {
	heads []uint64
	err   error
	delay time.Duration
	i     int
}

func (p *stubProbe) BlockNumber(ctx context.Context) (uint64, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return 0, p.err
	}
	h := p.heads[p.i]
	if p.i < len(p.heads)-1 {
		p.i++
	}
	return h, nil
}

type stubMeter int

func (m stubMeter) RecentRequests() int { return int(m) }

func TestNetwork_HealthyProbe(t *testing.T) {
	n := NewNetworkCheck(DefaultNetworkConfig(), &stubProbe{heads: []uint64{100}}, stubMeter(2))

	res := n.Check(context.Background(), nil)
	assert.Equal(t, domain.LevelSafe, res.Level)
	assert.Equal(t, uint64(100), res.Metadata["head"])
}

func TestNetwork_HeadBackwardsRejects(t *testing.T) {
	n := NewNetworkCheck(DefaultNetworkConfig(), &stubProbe{heads: []uint64{100, 99, 97}}, nil)
	ctx := context.Background()

	require.Equal(t, domain.LevelSafe, n.Check(ctx, nil).Level)
	assert.Equal(t, domain.LevelSafe, n.Check(ctx, nil).Level, "one block back is tolerated")

	res := n.Check(ctx, nil)
	assert.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "RPC DESYNC")
}

func TestNetwork_ErrorAndTimeout(t *testing.T) {
	n := NewNetworkCheck(DefaultNetworkConfig(), &stubProbe{err: errors.New("connection refused")}, nil)
	res := n.Check(context.Background(), nil)
	assert.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "RPC ERROR")

	cfg := DefaultNetworkConfig()
	cfg.ProbeTimeout = 10 * time.Millisecond
	n = NewNetworkCheck(cfg, &stubProbe{heads: []uint64{1}, delay: time.Second}, nil)
	res = n.Check(context.Background(), nil)
	assert.Equal(t, []string{"RPC TIMEOUT"}, res.Issues)
}

func TestNetwork_LatencyAndRateWarnings(t *testing.T) {
	cfg := DefaultNetworkConfig()
	cfg.MaxLatency = 5 * time.Millisecond
	n := NewNetworkCheck(cfg, &stubProbe{heads: []uint64{1}, delay: 20 * time.Millisecond}, stubMeter(11))

	res := n.Check(context.Background(), nil)
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "RATE LIMIT APPROACHING")
	assert.Contains(t, res.Warnings[1], "HIGH LATENCY")
}
