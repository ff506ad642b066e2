package app

import (
	"context"
	"errors"
	"sync"
	"time"

	riskDomain "github.com/fd1az/flashguard/business/risk/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
)

type stubSampler struct {
	cpu, mem, disk float64
	err            error
}

func (s *stubSampler) CPUPercent(context.Context) (float64, error)    { return s.cpu, s.err }
func (s *stubSampler) MemoryPercent(context.Context) (float64, error) { return s.mem, s.err }
func (s *stubSampler) DiskPercent(context.Context) (float64, error)   { return s.disk, s.err }

type stubNode struct {
	head  uint64
	err   error
	delay time.Duration
}

func (n *stubNode) BlockNumber(ctx context.Context) (uint64, error) {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return n.head, n.err
}

var errUnreachable = errors.New("dial tcp: connection refused")

type fakeLedger struct {
	mu      sync.Mutex
	stops   []string
	stopped bool
}

func (f *fakeLedger) Snapshot() riskDomain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s riskDomain.Snapshot
	s.EmergencyStopped = f.stopped
	s.ActiveTrades = 2
	s.ErrorCount = 1
	return s
}

func (f *fakeLedger) EmergencyStop(_ context.Context, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.stops = append(f.stops, reason)
}

func (f *fakeLedger) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stops)
}

type fixedStats safetyDomain.Stats

func (s fixedStats) Stats() safetyDomain.Stats { return safetyDomain.Stats(s) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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
