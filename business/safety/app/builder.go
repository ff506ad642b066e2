package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	chainApp "github.com/fd1az/flashguard/business/chain/app"
	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

// BuilderConfig tunes relay submission.
type BuilderConfig struct {
	DuplicateWindow time.Duration
	HistorySize     int
	MaxAttempts     int
	RetryBackoff    time.Duration // doubled after each failed round
	SubmitTimeout   time.Duration
}

// DefaultBuilderConfig returns the production settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		DuplicateWindow: 5 * time.Second,
		HistorySize:     100,
		MaxAttempts:     3,
		RetryBackoff:    2 * time.Second,
		SubmitTimeout:   5 * time.Second,
	}
}

type submitted struct {
	fingerprint common.Hash
	sub         chainDomain.Submission
}

// RelayStats counts outcomes per relay.
type RelayStats struct {
	Accepted int `json:"accepted"`
	Failed   int `json:"failed"`
}

// BuilderCheck submits bundles through redundant relays and refuses to
// send a bundle that would overwrite one just submitted.
type BuilderCheck struct {
	cfg    BuilderConfig
	relays []chainApp.BundleRelay
	logger logger.LoggerInterface
	now    func() time.Time

	mu      sync.Mutex
	history []submitted
	stats   map[string]*RelayStats
}

// NewBuilderCheck creates a builder check over relays, tried in order.
func NewBuilderCheck(cfg BuilderConfig, log logger.LoggerInterface, relays ...chainApp.BundleRelay) *BuilderCheck {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 100
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 5 * time.Second
	}
	stats := make(map[string]*RelayStats, len(relays))
	for _, r := range relays {
		stats[r.Name()] = &RelayStats{}
	}
	return &BuilderCheck{
		cfg:    cfg,
		relays: relays,
		logger: log,
		now:    time.Now,
		stats:  stats,
	}
}

func (b *BuilderCheck) Name() string { return domain.CheckBuilder }

// Check rejects a bundle whose transaction set was submitted within the
// duplicate window.
func (b *BuilderCheck) Check(_ context.Context, sc *domain.Context) domain.CheckResult {
	if sc == nil || sc.Bundle == nil {
		return domain.Safe(domain.CheckBuilder)
	}
	if len(b.relays) == 0 {
		return domain.NewResult(domain.CheckBuilder, []string{"NO RELAYS: bundle submission unavailable"}, nil)
	}

	var issues []string
	if prev, ok := b.recent(sc.Bundle.Fingerprint()); ok {
		issues = append(issues, fmt.Sprintf("POSSIBLE OVERWRITE: similar bundle submitted %s ago via %s",
			b.now().Sub(prev.SubmittedAt).Round(time.Millisecond), prev.Relay))
	}
	return domain.NewResult(domain.CheckBuilder, issues, nil).With("relays", len(b.relays))
}

func (b *BuilderCheck) recent(fp common.Hash) (chainDomain.Submission, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.cfg.DuplicateWindow)
	for i := len(b.history) - 1; i >= 0; i-- {
		h := b.history[i]
		if h.sub.SubmittedAt.Before(cutoff) {
			break
		}
		if h.fingerprint == fp {
			return h.sub, true
		}
	}
	return chainDomain.Submission{}, false
}

// Submit sends the bundle to the first relay that accepts it. Each round
// tries every relay; rounds repeat up to MaxAttempts with exponential
// backoff.
func (b *BuilderCheck) Submit(ctx context.Context, bundle *chainDomain.Bundle) (*chainDomain.Submission, error) {
	if len(bundle.Txs) == 0 {
		return nil, apperror.Validation(apperror.CodeBundleInvalid, "bundle has no transactions")
	}
	fp := bundle.Fingerprint()
	if prev, ok := b.recent(fp); ok {
		return nil, apperror.New(apperror.CodeBundleDuplicate,
			apperror.WithContext(fmt.Sprintf("submitted via %s at block %d", prev.Relay, prev.TargetBlock)))
	}
	if len(b.relays) == 0 {
		return nil, apperror.New(apperror.CodeRelayExhausted, apperror.WithContext("no relays configured"))
	}

	var lastErr error
	backoff := b.cfg.RetryBackoff
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		for _, relay := range b.relays {
			hash, err := b.send(ctx, relay, bundle)
			if err == nil {
				sub := chainDomain.Submission{
					Relay:       relay.Name(),
					BundleHash:  hash,
					TargetBlock: bundle.TargetBlock,
					Attempts:    attempt,
					SubmittedAt: b.now(),
				}
				b.record(fp, sub)
				return &sub, nil
			}
			lastErr = err
			b.logger.Warn(ctx, "relay rejected bundle",
				"relay", relay.Name(),
				"attempt", attempt,
				"target_block", bundle.TargetBlock,
				"error", err,
			)
		}

		if attempt == b.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, apperror.Wrap(ctx.Err(), apperror.CodeRelayExhausted, "submission cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, apperror.New(apperror.CodeRelayExhausted,
		apperror.WithContext(fmt.Sprintf("%d relays x %d attempts", len(b.relays), b.cfg.MaxAttempts)),
		apperror.WithCause(lastErr),
	)
}

func (b *BuilderCheck) send(ctx context.Context, relay chainApp.BundleRelay, bundle *chainDomain.Bundle) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.SubmitTimeout)
	defer cancel()

	hash, err := relay.SendBundle(ctx, bundle.Txs, bundle.TargetBlock)

	b.mu.Lock()
	st := b.stats[relay.Name()]
	if st == nil {
		st = &RelayStats{}
		b.stats[relay.Name()] = st
	}
	if err != nil {
		st.Failed++
	} else {
		st.Accepted++
	}
	b.mu.Unlock()
	return hash, err
}

func (b *BuilderCheck) record(fp common.Hash, sub chainDomain.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, submitted{fingerprint: fp, sub: sub})
	if len(b.history) > b.cfg.HistorySize {
		b.history = append(b.history[:0], b.history[len(b.history)-b.cfg.HistorySize:]...)
	}
}

// Stats returns a copy of per-relay counters.
func (b *BuilderCheck) Stats() map[string]RelayStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]RelayStats, len(b.stats))
	for k, v := range b.stats {
		out[k] = *v
	}
	return out
}
