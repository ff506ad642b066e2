package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/asset"
)

type mockNonces struct{ mock.Mock }

func (m *mockNonces) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

var sender = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func u64(v uint64) *uint64 { return &v }

func newTxCheck(t *testing.T, chainNonce uint64) (*TransactionCheck, *mockNonces) {
	t.Helper()
	src := &mockNonces{}
	src.On("Nonce", mock.Anything, sender).Return(chainNonce, nil)
	return NewTransactionCheck(NewPendingRegistry(src), asset.DefaultRegistry(), 5), src
}

func TestTransaction_NonceTooLow(t *testing.T) {
	c, _ := newTxCheck(t, 7)

	res := c.Check(context.Background(), &domain.Context{Sender: sender, Nonce: u64(6)})
	require.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "NONCE TOO LOW")
}

func TestTransaction_NonceGapWarns(t *testing.T) {
	c, _ := newTxCheck(t, 7)

	assert.Equal(t, domain.LevelSafe, c.Check(context.Background(), &domain.Context{Sender: sender, Nonce: u64(12)}).Level)

	res := c.Check(context.Background(), &domain.Context{Sender: sender, Nonce: u64(13)})
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "NONCE GAP")
}

func TestTransaction_ConflictingPayload(t *testing.T) {
	c, _ := newTxCheck(t, 7)
	ctx := context.Background()
	_, err := c.Registry().Expected(ctx, sender)
	require.NoError(t, err)
	require.NoError(t, c.Registry().Track(sender, 7, common.HexToHash("0x01")))

	res := c.Check(ctx, &domain.Context{Sender: sender, Nonce: u64(7), PayloadHash: common.HexToHash("0x02")})
	require.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "NONCE CONFLICT")

	res = c.Check(ctx, &domain.Context{Sender: sender, Nonce: u64(7), PayloadHash: common.HexToHash("0x01")})
	assert.Equal(t, domain.LevelSafe, res.Level)
}

func TestTransaction_AssignsNextFreeNonce(t *testing.T) {
	c, src := newTxCheck(t, 3)
	ctx := context.Background()

	res := c.Check(ctx, &domain.Context{Sender: sender})
	assert.Equal(t, uint64(3), res.Metadata["nonce"])

	require.NoError(t, c.Registry().Track(sender, 3, common.HexToHash("0x01")))
	res = c.Check(ctx, &domain.Context{Sender: sender})
	assert.Equal(t, uint64(4), res.Metadata["nonce"])

	// Seeded once from the chain.
	src.AssertNumberOfCalls(t, "Nonce", 1)
}

func TestTransaction_FeeOnTransferWarns(t *testing.T) {
	reg := asset.DefaultRegistry()
	require.NoError(t, reg.Register(asset.Token{Symbol: "PAXG", FeeOnTransfer: true}))
	c := NewTransactionCheck(NewPendingRegistry(nil), reg, 5)

	res := c.Check(context.Background(), &domain.Context{Tokens: []string{"WETH", "PAXG"}})
	assert.Equal(t, domain.LevelWarning, res.Level)
	assert.Contains(t, res.Warnings[0], "PAXG")
}

func TestTransaction_NonceLookupFailureRejects(t *testing.T) {
	src := &mockNonces{}
	src.On("Nonce", mock.Anything, sender).Return(uint64(0), errors.New("rpc down"))
	c := NewTransactionCheck(NewPendingRegistry(src), nil, 5)

	res := c.Check(context.Background(), &domain.Context{Sender: sender, Nonce: u64(1)})
	assert.Equal(t, domain.LevelReject, res.Level)
}

func TestPendingRegistry_ConfirmAndDrop(t *testing.T) {
	r := NewPendingRegistry(nil)
	ctx := context.Background()

	require.NoError(t, r.Track(sender, 0, common.HexToHash("0x01")))
	err := r.Track(sender, 0, common.HexToHash("0x02"))
	assert.Equal(t, apperror.CodeNonceConflict, apperror.GetCode(err))

	r.Confirm(sender, 0)
	n, err := r.Expected(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Zero(t, r.PendingCount())

	err = r.Track(sender, 0, common.HexToHash("0x03"))
	assert.Equal(t, apperror.CodeNonceConflict, apperror.GetCode(err))

	require.NoError(t, r.Track(sender, 1, common.HexToHash("0x04")))
	r.Drop(sender, 1)
	assert.Zero(t, r.PendingCount())
}
