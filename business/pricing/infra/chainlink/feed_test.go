package chainlink

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/pricing/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/asset"
)

type fakeCaller struct {
	parsed    abi.ABI
	round     *big.Int
	answer    *big.Int
	updatedAt time.Time
	answered  *big.Int
	calls     map[string]int
	err       error
}

func newFakeCaller(t *testing.T) *fakeCaller {
	t.Helper()
	f, err := NewFeed(nil, asset.DefaultRegistry())
	require.NoError(t, err)
	return &fakeCaller{
		parsed:    f.abi,
		round:     big.NewInt(10),
		answer:    big.NewInt(300012345678), // 3000.12345678 with 8 decimals
		updatedAt: time.Unix(1_700_000_000, 0),
		answered:  big.NewInt(10),
		calls:     map[string]int{},
	}
}

func (c *fakeCaller) Call(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	dec := c.parsed.Methods["decimals"]
	if bytes.Equal(data[:4], dec.ID) {
		c.calls["decimals"]++
		return dec.Outputs.Pack(uint8(8))
	}
	lrd := c.parsed.Methods["latestRoundData"]
	c.calls["latestRoundData"]++
	return lrd.Outputs.Pack(c.round, c.answer, big.NewInt(c.updatedAt.Unix()), big.NewInt(c.updatedAt.Unix()), c.answered)
}

func TestFeed_DecodesLatestRound(t *testing.T) {
	caller := newFakeCaller(t)
	feed, err := NewFeed(caller, asset.DefaultRegistry())
	require.NoError(t, err)

	q, err := feed.Price(context.Background(), "WETH")
	require.NoError(t, err)
	assert.Equal(t, "3000.12345678", q.Value.String())
	assert.Equal(t, domain.KindSignedFeed, q.Kind)
	assert.Equal(t, caller.updatedAt, q.ObservedAt)
	assert.InDelta(t, feedConfidence, q.Confidence, 1e-9)

	_, err = feed.Price(context.Background(), "WETH")
	require.NoError(t, err)
	assert.Equal(t, 1, caller.calls["decimals"], "decimals are cached per feed")
	assert.Equal(t, 2, caller.calls["latestRoundData"])
}

func TestFeed_CarriedOverRoundLowersConfidence(t *testing.T) {
	caller := newFakeCaller(t)
	caller.answered = big.NewInt(9)
	feed, err := NewFeed(caller, asset.DefaultRegistry())
	require.NoError(t, err)

	q, err := feed.Price(context.Background(), "WETH")
	require.NoError(t, err)
	assert.InDelta(t, carriedOverRoundConf, q.Confidence, 1e-9)
}

func TestFeed_Errors(t *testing.T) {
	caller := newFakeCaller(t)
	feed, err := NewFeed(caller, asset.DefaultRegistry())
	require.NoError(t, err)

	_, err = feed.Price(context.Background(), "WBTC")
	assert.Equal(t, apperror.CodePriceUnavailable, apperror.GetCode(err))

	caller.answer = big.NewInt(0)
	_, err = feed.Price(context.Background(), "WETH")
	assert.Equal(t, apperror.CodeInvalidQuote, apperror.GetCode(err))

	caller.err = errors.New("rpc down")
	feed2, err := NewFeed(caller, asset.DefaultRegistry())
	require.NoError(t, err)
	_, err = feed2.Price(context.Background(), "WETH")
	assert.Error(t, err)
}
