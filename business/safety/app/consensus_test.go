package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

var epoch = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func hashOf(n uint64, fork byte) common.Hash {
	var h common.Hash
	h[0] = fork
	new(big.Int).SetUint64(n).FillBytes(h[24:])
	return h
}

func block(n uint64, fork, parentFork byte, baseFeeGwei int64) *chainDomain.BlockState {
	return &chainDomain.BlockState{
		Number:     n,
		Hash:       hashOf(n, fork),
		ParentHash: hashOf(n-1, parentFork),
		BaseFee:    new(big.Int).Mul(big.NewInt(baseFeeGwei), big.NewInt(1_000_000_000)),
		Timestamp:  epoch.Add(time.Duration(n) * 12 * time.Second),
	}
}

func newConsensus(t *testing.T) *ConsensusCheck {
	t.Helper()
	c := NewConsensusCheck(DefaultConsensusConfig(), logger.NewNop())
	// Wall clock follows the block timestamps.
	c.now = func() time.Time {
		if h := c.tip(); h != nil {
			return h.Timestamp
		}
		return epoch
	}
	return c
}

func feed(c *ConsensusCheck, from, to uint64) {
	for n := from; n <= to; n++ {
		c.Observe(block(n, 0, 0, 20))
	}
}

func TestConsensus_LinearChainIsSafe(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 104)

	res := c.Observe(block(105, 0, 0, 20))
	assert.Equal(t, domain.LevelSafe, res.Level)
	assert.Empty(t, res.Issues)
}

func TestConsensus_ParentMismatchRejects(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 104)

	res := c.Observe(block(105, 1, 1, 20))
	require.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "REORG")
	assert.Equal(t, domain.LevelReject, c.Check(context.Background(), &domain.Context{}).Level)

	// The next block on the new fork restores the verdict.
	res = c.Observe(block(106, 1, 1, 20))
	assert.Equal(t, domain.LevelSafe, res.Level)
	assert.False(t, c.LastReorg().IsZero())
}

func TestConsensus_ReplacedTipWithinDepthRejects(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 105)

	res := c.Observe(block(104, 1, 0, 20))
	require.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "replaces 2 block(s)")
	assert.Equal(t, uint64(104), c.Head().Number)
}

func TestConsensus_DeepRewindOnlyWarns(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 109)

	res := c.Observe(block(102, 1, 0, 20))
	assert.Equal(t, domain.LevelWarning, res.Level)
}

func TestConsensus_DuplicateHeadIgnored(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 103)

	res := c.Observe(block(103, 0, 0, 20))
	assert.Equal(t, domain.LevelSafe, res.Level)
}

func TestConsensus_BaseFeeSpikeWarns(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 102)

	res := c.Observe(block(103, 0, 0, 41))
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "BASE FEE SPIKE")

	res = c.Observe(block(104, 0, 0, 82))
	assert.Equal(t, domain.LevelSafe, res.Level, "exactly 2x is not a spike")
}

func TestConsensus_TimestampDriftWarns(t *testing.T) {
	c := NewConsensusCheck(DefaultConsensusConfig(), logger.NewNop())
	c.now = func() time.Time { return epoch.Add(time.Hour) }

	res := c.Observe(block(1, 0, 0, 20))
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "TIMESTAMP DRIFT")
}

func TestConsensus_BundleState(t *testing.T) {
	c := newConsensus(t)
	feed(c, 100, 105)

	assert.True(t, c.BundleStateValid(103))
	assert.False(t, c.BundleStateValid(102))
	assert.True(t, c.BundleStateValid(106))

	res := c.BundleState(104, hashOf(104, 9))
	assert.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "STATE REORG")

	rep := c.Check(context.Background(), &domain.Context{SimulatedBlock: 100})
	assert.Equal(t, domain.LevelReject, rep.Level)
	assert.Contains(t, rep.Issues[0], "STALE SIMULATION")
}

func TestConsensus_WindowBounded(t *testing.T) {
	c := newConsensus(t)
	feed(c, 1, 50)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.blocks, 10)
	assert.Len(t, c.baseFees, 20)
}
