package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
)

func head(n uint64) *chainDomain.BlockState {
	return &chainDomain.BlockState{Number: n}
}

func ether(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
}

func pending(t *testing.T, f *fixture, nonce uint64, dry bool) Pending {
	t.Helper()
	opp := opportunity()
	require.NoError(t, f.nonces.Track(opp.Sender, nonce, opp.PayloadHash()))
	return Pending{
		Opportunity: opp,
		Nonce:       nonce,
		Submission:  *submission(101),
		Expected:    decimal.NewFromInt(900),
		GasEstimate: decimal.NewFromInt(15),
		DryRun:      dry,
	}
}

func TestSettler_IncludedBundleBooksRealizedProfit(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()
	_, err := f.nonces.Expected(ctx, sender)
	require.NoError(t, err)

	p := pending(t, f, 7, false)
	f.settler.Watch(ctx, p)
	f.settler.OnHead(ctx, head(100))
	assert.Equal(t, 1, f.settler.PendingCount(), "target not reached")

	// 300000 gas at 20 gwei is 0.006 ETH, $12 at $2000.
	f.chain.set(8, nil)
	f.chain.mine(p.Opportunity, 101, 300000, gweiWei(20), false)
	f.settler.OnHead(ctx, head(101))

	assert.Zero(t, f.settler.PendingCount())
	assert.Zero(t, f.nonces.PendingCount())
	snap := f.risk.Snapshot()
	assert.Equal(t, 1, snap.SuccessfulTrades)
	assert.True(t, snap.DailyProfit.Equal(decimal.NewFromInt(903)), "profit=%s", snap.DailyProfit)

	next, err := f.nonces.NextFree(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), next)

	require.Len(t, f.sims.records, 1)
	assert.True(t, *f.sims.records[0].actual)
}

func TestSettler_RevertedBundleBooksLoss(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()

	p := pending(t, f, 7, false)
	f.settler.Watch(ctx, p)
	f.chain.set(8, nil)
	f.chain.mine(p.Opportunity, 101, 300000, gweiWei(20), true)
	f.chain.setBalance(100, ether(1000))
	f.chain.setBalance(101, ether(990))
	f.settler.OnHead(ctx, head(101))

	snap := f.risk.Snapshot()
	assert.Equal(t, 1, snap.FailedTrades)
	assert.True(t, snap.DailyProfit.IsZero())
	// Balance fell 0.01 ETH, more than the $12 of fees.
	assert.True(t, snap.DailyLoss.Equal(decimal.NewFromInt(20)), "loss=%s", snap.DailyLoss)
	assert.True(t, snap.HourlyLoss.Equal(decimal.NewFromInt(20)))

	require.Len(t, f.sims.records, 1)
	assert.True(t, *f.sims.records[0].actual)
}

func TestSettler_RevertedBundleFallsBackToFees(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()

	p := pending(t, f, 7, false)
	f.settler.Watch(ctx, p)
	f.chain.set(8, nil)
	f.chain.mine(p.Opportunity, 101, 300000, gweiWei(20), true)
	f.settler.OnHead(ctx, head(101))

	assert.True(t, f.risk.Snapshot().DailyLoss.Equal(decimal.NewFromInt(12)))
}

func TestSettler_RealizedLossesTripDailyLimit(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()

	p := pending(t, f, 7, false)
	f.settler.Watch(ctx, p)
	f.chain.set(8, nil)
	f.chain.mine(p.Opportunity, 101, 300000, gweiWei(20), true)
	f.chain.setBalance(100, ether(10000))
	f.chain.setBalance(101, ether(4000))
	f.settler.OnHead(ctx, head(101))

	snap := f.risk.Snapshot()
	assert.True(t, snap.DailyLoss.Equal(decimal.NewFromInt(12000)))
	assert.True(t, snap.EmergencyStopped)
	ok, _ := f.risk.Allow(decimal.NewFromInt(10))
	assert.False(t, ok)
}

func TestSettler_NonceTakenByOtherTransaction(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()

	f.settler.Watch(ctx, pending(t, f, 7, false))
	f.chain.set(8, nil)
	f.settler.OnHead(ctx, head(101))

	snap := f.risk.Snapshot()
	assert.Equal(t, 1, snap.FailedTrades)
	assert.True(t, snap.DailyLoss.IsZero())
	require.Len(t, f.sims.records, 1)
	assert.False(t, *f.sims.records[0].actual)
}

func TestSettler_MissedBundle(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()

	f.settler.Watch(ctx, pending(t, f, 7, false))
	f.settler.OnHead(ctx, head(102))

	assert.Zero(t, f.settler.PendingCount())
	assert.Zero(t, f.nonces.PendingCount())
	snap := f.risk.Snapshot()
	assert.Equal(t, 1, snap.FailedTrades)
	assert.True(t, snap.DailyLoss.IsZero(), "a missed bundle costs nothing")

	require.Len(t, f.sims.records, 1)
	assert.True(t, f.sims.records[0].simulated)
	assert.False(t, *f.sims.records[0].actual)
}

func TestSettler_UnpricedInclusionRetriesThenBooksEstimate(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()
	f.prices.err = errors.New("feed down")

	p := pending(t, f, 7, false)
	f.settler.Watch(ctx, p)
	f.chain.set(8, nil)
	f.chain.mine(p.Opportunity, 101, 300000, gweiWei(20), false)

	f.settler.OnHead(ctx, head(101))
	assert.Equal(t, 1, f.settler.PendingCount())
	assert.Empty(t, f.sims.records)

	f.settler.OnHead(ctx, head(106))
	assert.Zero(t, f.settler.PendingCount())
	snap := f.risk.Snapshot()
	assert.Equal(t, 1, snap.SuccessfulTrades)
	assert.True(t, snap.DailyProfit.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, 1, snap.ErrorCount)
	require.Len(t, f.sims.records, 1)
}

func TestSettler_UnreadableOutcomeRetriesThenReleases(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()
	f.settler.Watch(ctx, pending(t, f, 7, false))
	f.chain.set(0, errors.New("rpc down"))

	f.settler.OnHead(ctx, head(101))
	assert.Equal(t, 1, f.settler.PendingCount())

	f.settler.OnHead(ctx, head(106))
	assert.Zero(t, f.settler.PendingCount())
	assert.Zero(t, f.nonces.PendingCount())
	assert.Equal(t, 1, f.risk.Snapshot().ErrorCount)
	assert.Empty(t, f.sims.records)
}

func TestSettler_DryRunSettlesImmediately(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), true)
	ctx := context.Background()

	f.settler.Watch(ctx, pending(t, f, 7, true))

	assert.Zero(t, f.settler.PendingCount())
	assert.Zero(t, f.nonces.PendingCount())
	assert.Equal(t, 1, f.risk.Snapshot().SuccessfulTrades)
	require.Len(t, f.sims.records, 1)
	assert.Nil(t, f.sims.records[0].actual)
}
