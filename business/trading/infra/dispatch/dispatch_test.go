package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
)

type stubSubmitter struct {
	got *chainDomain.Bundle
	err error
}

func (s *stubSubmitter) Submit(_ context.Context, b *chainDomain.Bundle) (*chainDomain.Submission, error) {
	s.got = b
	if s.err != nil {
		return nil, s.err
	}
	return &chainDomain.Submission{Relay: "flashbots", BundleHash: common.HexToHash("0x01"), TargetBlock: b.TargetBlock, Attempts: 1}, nil
}

func opportunity() domain.Opportunity {
	return domain.Opportunity{ID: "opp-1", Txs: []hexutil.Bytes{{0xaa}}, TargetBlock: 101}
}

func TestRelay_Dispatch(t *testing.T) {
	s := &stubSubmitter{}
	sub, err := NewRelay(s, 0).Dispatch(context.Background(), opportunity())
	require.NoError(t, err)
	assert.Equal(t, "flashbots", sub.Relay)
	assert.Equal(t, uint64(101), s.got.TargetBlock)
}

func TestRelay_DispatchKeepsRelayCode(t *testing.T) {
	s := &stubSubmitter{err: apperror.New(apperror.CodeRelayExhausted)}
	_, err := NewRelay(s, 0).Dispatch(context.Background(), opportunity())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeRelayExhausted, apperror.GetCode(err))

	s.err = errors.New("boom")
	_, err = NewRelay(s, 0).Dispatch(context.Background(), opportunity())
	assert.Equal(t, apperror.CodeDispatchFailed, apperror.GetCode(err))
}

func TestRelay_NoTransactions(t *testing.T) {
	_, err := NewRelay(&stubSubmitter{}, 0).Dispatch(context.Background(), domain.Opportunity{ID: "x"})
	assert.Equal(t, apperror.CodeBundleInvalid, apperror.GetCode(err))
}

func TestPaper_Dispatch(t *testing.T) {
	p := NewPaper()
	assert.True(t, p.DryRun())
	sub, err := p.Dispatch(context.Background(), opportunity())
	require.NoError(t, err)
	assert.Equal(t, "dry-run", sub.Relay)
	assert.Equal(t, opportunity().PayloadHash(), sub.BundleHash)
}
