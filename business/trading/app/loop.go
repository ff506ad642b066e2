package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

// Evaluator decides one opportunity.
type Evaluator interface {
	Evaluate(ctx context.Context, opp domain.Opportunity) domain.Decision
}

// Ranker orders approved validations by profit.
type Ranker interface {
	Rank(vals []profitDomain.Validation) []profitDomain.Validation
}

// LoopConfig tunes the trading loop.
type LoopConfig struct {
	Workers   int
	InboxSize int
	Recent    int // approved decisions kept for ranking
}

// DefaultLoopConfig returns production settings.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{Workers: 3, InboxSize: 64, Recent: 100}
}

// LoopStats counts decisions since start.
type LoopStats struct {
	Evaluated  int64                  `json:"evaluated"`
	Approved   int64                  `json:"approved"`
	Rejected   map[domain.Stage]int64 `json:"rejected_by_stage"`
	Dropped    int64                  `json:"dropped"`
	InboxDepth int                    `json:"inbox_depth"`
	Shedding   bool                   `json:"shedding"`
}

// Loop drains an inbox of opportunities through an evaluator with a
// bounded number of concurrent evaluations.
type Loop struct {
	config    LoopConfig
	evaluator Evaluator
	ranker    Ranker
	logger    logger.LoggerInterface
	now       func() time.Time

	inbox chan domain.Opportunity
	sem   *semaphore.Weighted

	mu       sync.Mutex
	stats    LoopStats
	recent   []profitDomain.Validation
	shedding bool
}

// NewLoop creates a loop. ranker may be nil.
func NewLoop(cfg LoopConfig, evaluator Evaluator, ranker Ranker, log logger.LoggerInterface) *Loop {
	def := DefaultLoopConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.Recent <= 0 {
		cfg.Recent = def.Recent
	}
	return &Loop{
		config:    cfg,
		evaluator: evaluator,
		ranker:    ranker,
		logger:    log,
		now:       time.Now,
		inbox:     make(chan domain.Opportunity, cfg.InboxSize),
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		stats:     LoopStats{Rejected: make(map[domain.Stage]int64)},
	}
}

// Submit queues an opportunity and returns it with its assigned id. A full
// inbox rejects the submission rather than blocking the scanner.
func (l *Loop) Submit(opp domain.Opportunity) (domain.Opportunity, error) {
	opp = domain.NewOpportunity(opp, l.now())
	select {
	case l.inbox <- opp:
		return opp, nil
	default:
		l.mu.Lock()
		l.stats.Dropped++
		l.mu.Unlock()
		return opp, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithContext("opportunity inbox full"))
	}
}

// Run evaluates queued opportunities until ctx is done, then waits for
// in-flight evaluations to finish.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info(ctx, "trading loop started", "workers", l.config.Workers)
	defer l.wait()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info(ctx, "trading loop stopping")
			return nil
		case opp := <-l.inbox:
			if err := l.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			go func() {
				defer l.sem.Release(1)
				l.record(l.evaluator.Evaluate(ctx, opp))
			}()
		}
	}
}

// wait blocks until every worker slot is free.
func (l *Loop) wait() {
	n := int64(l.config.Workers)
	if err := l.sem.Acquire(context.Background(), n); err == nil {
		l.sem.Release(n)
	}
}

func (l *Loop) record(d domain.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Evaluated++
	if !d.Approved {
		l.stats.Rejected[d.Stage]++
		return
	}
	l.stats.Approved++
	l.recent = append(l.recent, d.Profit())
	if len(l.recent) > l.config.Recent {
		l.recent = append(l.recent[:0:0], l.recent[len(l.recent)-l.config.Recent:]...)
	}
}

// Shed runs the loop on a single worker for d. Calls while shedding are
// ignored.
func (l *Loop) Shed(ctx context.Context, d time.Duration) {
	extra := int64(l.config.Workers - 1)
	if extra <= 0 {
		return
	}
	l.mu.Lock()
	if l.shedding {
		l.mu.Unlock()
		return
	}
	l.shedding = true
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			l.shedding = false
			l.mu.Unlock()
		}()
		if err := l.sem.Acquire(ctx, extra); err != nil {
			return
		}
		defer l.sem.Release(extra)
		l.logger.Warn(ctx, "shedding load", "workers", 1, "for", d.String())

		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}()
}

// Drain discards queued opportunities and returns how many were dropped.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case <-l.inbox:
			n++
		default:
			l.mu.Lock()
			l.stats.Dropped += int64(n)
			l.mu.Unlock()
			return n
		}
	}
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Rejected = make(map[domain.Stage]int64, len(l.stats.Rejected))
	for k, v := range l.stats.Rejected {
		s.Rejected[k] = v
	}
	s.InboxDepth = len(l.inbox)
	s.Shedding = l.shedding
	return s
}

// Top returns the most profitable recent approvals.
func (l *Loop) Top() []profitDomain.Validation {
	l.mu.Lock()
	recent := make([]profitDomain.Validation, len(l.recent))
	copy(recent, l.recent)
	l.mu.Unlock()
	if l.ranker == nil {
		return recent
	}
	return l.ranker.Rank(recent)
}
