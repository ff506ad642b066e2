// Package chainlink reads USD prices from Chainlink aggregator contracts.
package chainlink

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashguard/business/pricing/app"
	"github.com/fd1az/flashguard/business/pricing/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/asset"
)

var _ app.NamedSource = (*Feed)(nil)

const aggregatorABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

const (
	feedConfidence       = 0.98
	carriedOverRoundConf = 0.7 // answer carried over from an earlier round
)

// Caller performs read-only contract calls.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Feed is a PriceSource backed by on-chain aggregators.
type Feed struct {
	caller   Caller
	registry *asset.Registry
	abi      abi.ABI

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewFeed creates a Feed. Tokens without a configured aggregator are unavailable.
func NewFeed(caller Caller, registry *asset.Registry) (*Feed, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, err
	}
	return &Feed{
		caller:   caller,
		registry: registry,
		abi:      parsed,
		decimals: make(map[common.Address]uint8),
	}, nil
}

// Name implements NamedSource.
func (f *Feed) Name() string {
	return "chainlink"
}

// Price reads latestRoundData for token's aggregator.
func (f *Feed) Price(ctx context.Context, token string) (*domain.Quote, error) {
	t, ok := f.registry.BySymbol(token)
	if !ok || !t.HasFeed() {
		return nil, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext("no chainlink feed for "+token))
	}

	dec, err := f.feedDecimals(ctx, t.ChainlinkFeed)
	if err != nil {
		return nil, err
	}

	out, err := f.call(ctx, t.ChainlinkFeed, "latestRoundData")
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, decodeErr("latestRoundData: unexpected output arity")
	}
	roundID, _ := out[0].(*big.Int)
	answer, _ := out[1].(*big.Int)
	updatedAt, _ := out[3].(*big.Int)
	answeredIn, _ := out[4].(*big.Int)
	if roundID == nil || answer == nil || updatedAt == nil || answeredIn == nil {
		return nil, decodeErr("latestRoundData: unexpected output types")
	}
	if answer.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("non-positive answer from "+t.ChainlinkFeed.Hex()))
	}

	confidence := feedConfidence
	if answeredIn.Cmp(roundID) < 0 {
		confidence = carriedOverRoundConf
	}

	return &domain.Quote{
		Token:      t.Symbol,
		Value:      decimal.NewFromBigInt(answer, -int32(dec)),
		Source:     f.Name(),
		Kind:       domain.KindSignedFeed,
		Confidence: confidence,
		ObservedAt: time.Unix(updatedAt.Int64(), 0),
	}, nil
}

func (f *Feed) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	f.mu.RLock()
	dec, ok := f.decimals[feed]
	f.mu.RUnlock()
	if ok {
		return dec, nil
	}

	out, err := f.call(ctx, feed, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, decodeErr("decimals: unexpected output arity")
	}
	dec, ok = out[0].(uint8)
	if !ok {
		return 0, decodeErr("decimals: unexpected output type")
	}

	f.mu.Lock()
	f.decimals[feed] = dec
	f.mu.Unlock()
	return dec, nil
}

func (f *Feed) call(ctx context.Context, feed common.Address, method string) ([]any, error) {
	data, err := f.abi.Pack(method)
	if err != nil {
		return nil, apperror.New(apperror.CodeInternalError, apperror.WithCause(err))
	}
	raw, err := f.caller.Call(ctx, feed, data)
	if err != nil {
		return nil, err
	}
	out, err := f.abi.Unpack(method, raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeOracleDecode,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}
	return out, nil
}

func decodeErr(msg string) error {
	return apperror.New(apperror.CodeOracleDecode, apperror.WithContext(msg))
}
