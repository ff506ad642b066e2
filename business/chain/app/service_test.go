package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

type fakeSubscriber struct {
	heads chan *domain.BlockState
}

func (f *fakeSubscriber) Subscribe(context.Context) (<-chan *domain.BlockState, error) {
	return f.heads, nil
}

func (f *fakeSubscriber) State() domain.ConnectionState { return domain.StateConnected }

func TestChainService_DispatchesHeadsInOrder(t *testing.T) {
	sub := &fakeSubscriber{heads: make(chan *domain.BlockState, 3)}
	svc := NewChainService(nil, sub, logger.NewNop())

	var seen []uint64
	svc.OnHead(func(_ context.Context, b *domain.BlockState) { seen = append(seen, b.Number) })

	for n := uint64(1); n <= 3; n++ {
		sub.heads <- &domain.BlockState{Number: n}
	}
	close(sub.heads)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	assert.Equal(t, []uint64{1, 2, 3}, seen)
	assert.Equal(t, domain.StateConnected, svc.ConnectionState())
}
