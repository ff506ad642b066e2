package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

// ConsensusConfig tunes reorg and base fee tracking.
type ConsensusConfig struct {
	ReorgDepth         int
	BlockWindow        int
	BaseFeeWindow      int
	BaseFeeSpikeFactor float64
	MaxTimestampDrift  time.Duration
	MaxBundleBlockGap  uint64
}

// DefaultConsensusConfig returns the production settings.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		ReorgDepth:         3,
		BlockWindow:        10,
		BaseFeeWindow:      20,
		BaseFeeSpikeFactor: 2,
		MaxTimestampDrift:  12 * time.Second,
		MaxBundleBlockGap:  2,
	}
}

// ConsensusCheck keeps a short window of chain heads and flags reorgs,
// base fee spikes and clock drift. Heads arrive through Observe.
type ConsensusCheck struct {
	cfg    ConsensusConfig
	logger logger.LoggerInterface
	now    func() time.Time

	mu        sync.Mutex
	blocks    []*chainDomain.BlockState
	baseFees  []*big.Int
	last      domain.CheckResult
	lastReorg time.Time
}

// NewConsensusCheck creates an empty tracker.
func NewConsensusCheck(cfg ConsensusConfig, log logger.LoggerInterface) *ConsensusCheck {
	if cfg.ReorgDepth < 1 {
		cfg.ReorgDepth = 3
	}
	if cfg.BlockWindow < cfg.ReorgDepth {
		cfg.BlockWindow = cfg.ReorgDepth
	}
	if cfg.BaseFeeWindow < 1 {
		cfg.BaseFeeWindow = 20
	}
	return &ConsensusCheck{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		last:   domain.Safe(domain.CheckConsensus),
	}
}

func (c *ConsensusCheck) Name() string { return domain.CheckConsensus }

// OnHead adapts Observe to a head subscription handler.
func (c *ConsensusCheck) OnHead(ctx context.Context, b *chainDomain.BlockState) {
	if res := c.Observe(b); !res.Passed() {
		c.logger.Warn(ctx, "consensus check failed", "block", b.Number, "issues", res.Issues)
	}
}

// Observe feeds a new head and returns its verdict, which also becomes the
// current consensus verdict.
func (c *ConsensusCheck) Observe(b *chainDomain.BlockState) domain.CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var issues, warnings []string

	if tip := c.tip(); tip != nil {
		switch {
		case b.Number <= tip.Number:
			depth := tip.Number - b.Number + 1
			if known := c.at(b.Number); known != nil && known.Hash == b.Hash {
				// Same block delivered twice.
				return c.last
			}
			if depth <= uint64(c.cfg.ReorgDepth) {
				issues = append(issues, fmt.Sprintf("REORG DETECTED: block %d replaces %d block(s) at tip %d", b.Number, depth, tip.Number))
			} else {
				warnings = append(warnings, fmt.Sprintf("HEAD REWOUND: block %d is %d blocks behind tip %d", b.Number, depth, tip.Number))
			}
			c.truncateFrom(b.Number)
		case b.Number == tip.Number+1 && b.ParentHash != tip.Hash:
			issues = append(issues, fmt.Sprintf("REORG DETECTED: block %d parent does not match tip %s", b.Number, tip.Hash.Hex()))
		}
	}

	if n := len(c.baseFees); n > 0 && b.BaseFee != nil && c.cfg.BaseFeeSpikeFactor > 0 {
		prev := c.baseFees[n-1]
		limit := new(big.Float).Mul(new(big.Float).SetInt(prev), big.NewFloat(c.cfg.BaseFeeSpikeFactor))
		if new(big.Float).SetInt(b.BaseFee).Cmp(limit) > 0 {
			warnings = append(warnings, fmt.Sprintf("BASE FEE SPIKE: %s gwei vs %s gwei",
				chainDomain.WeiToGwei(b.BaseFee).StringFixed(1), chainDomain.WeiToGwei(prev).StringFixed(1)))
		}
	}

	if c.cfg.MaxTimestampDrift > 0 && !b.Timestamp.IsZero() {
		drift := c.now().Sub(b.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > c.cfg.MaxTimestampDrift {
			warnings = append(warnings, fmt.Sprintf("TIMESTAMP DRIFT: %s from wall clock", drift.Round(time.Second)))
		}
	}

	c.push(b)

	res := domain.NewResult(domain.CheckConsensus, issues, warnings).With("block", b.Number)
	if len(issues) > 0 {
		res = res.With("reorg", true)
		c.lastReorg = c.now()
	}
	c.last = res
	return res
}

// Check returns the verdict for the current tip, plus staleness of the
// simulation block when the context carries one.
func (c *ConsensusCheck) Check(_ context.Context, sc *domain.Context) domain.CheckResult {
	c.mu.Lock()
	res := c.last
	c.mu.Unlock()

	if sc != nil && sc.SimulatedBlock > 0 {
		if bs := c.BundleState(sc.SimulatedBlock, sc.SimulatedHash); !bs.Passed() {
			res = domain.NewResult(domain.CheckConsensus,
				append(append([]string(nil), res.Issues...), bs.Issues...),
				res.Warnings,
			).With("simulated_block", sc.SimulatedBlock)
		}
	}
	return res
}

// BundleStateValid reports whether a simulation run at simBlock still
// describes the current chain.
func (c *ConsensusCheck) BundleStateValid(simBlock uint64) bool {
	return c.BundleState(simBlock, common.Hash{}).Passed()
}

// BundleState explains BundleStateValid. A non-zero simHash is compared
// against the tracked block at that height.
func (c *ConsensusCheck) BundleState(simBlock uint64, simHash common.Hash) domain.CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.tip()
	if tip == nil {
		return domain.Safe(domain.CheckConsensus)
	}

	var issues []string
	if tip.Number > simBlock && tip.Number-simBlock > c.cfg.MaxBundleBlockGap {
		issues = append(issues, fmt.Sprintf("STALE SIMULATION: simulated at block %d, head is %d", simBlock, tip.Number))
	}
	if simHash != (common.Hash{}) {
		if b := c.at(simBlock); b != nil && b.Hash != simHash {
			issues = append(issues, fmt.Sprintf("STATE REORG: block %d hash changed since simulation", simBlock))
		}
	}
	return domain.NewResult(domain.CheckConsensus, issues, nil)
}

// LastReorg returns when a reorg was last seen; zero if never.
func (c *ConsensusCheck) LastReorg() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReorg
}

// Head returns the tracked tip or nil.
func (c *ConsensusCheck) Head() *chainDomain.BlockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip()
}

func (c *ConsensusCheck) tip() *chainDomain.BlockState {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

func (c *ConsensusCheck) at(number uint64) *chainDomain.BlockState {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Number == number {
			return c.blocks[i]
		}
	}
	return nil
}

// truncateFrom drops tracked blocks at or above number.
func (c *ConsensusCheck) truncateFrom(number uint64) {
	i := len(c.blocks)
	for i > 0 && c.blocks[i-1].Number >= number {
		i--
	}
	c.blocks = c.blocks[:i]
}

func (c *ConsensusCheck) push(b *chainDomain.BlockState) {
	c.blocks = append(c.blocks, b)
	if len(c.blocks) > c.cfg.BlockWindow {
		c.blocks = append(c.blocks[:0], c.blocks[len(c.blocks)-c.cfg.BlockWindow:]...)
	}
	if b.BaseFee != nil {
		c.baseFees = append(c.baseFees, b.BaseFee)
		if len(c.baseFees) > c.cfg.BaseFeeWindow {
			c.baseFees = append(c.baseFees[:0], c.baseFees[len(c.baseFees)-c.cfg.BaseFeeWindow:]...)
		}
	}
}
