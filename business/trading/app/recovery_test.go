package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reliabilityDomain "github.com/fd1az/flashguard/business/reliability/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

func TestRecoveryHandler_RestartDrainsAndResyncs(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	ctx := context.Background()
	l := NewLoop(LoopConfig{Workers: 2, InboxSize: 8}, &countingEvaluator{}, nil, logger.NewNop())
	for i := 0; i < 3; i++ {
		_, err := l.Submit(domain.Opportunity{})
		require.NoError(t, err)
	}
	_, err := f.nonces.Expected(ctx, sender)
	require.NoError(t, err)
	f.chain.set(12, nil)

	h := NewRecoveryHandler(l, f.nonces, sender, time.Minute, logger.NewNop())
	h.Handle(ctx, reliabilityDomain.ActionRestartService)

	assert.Zero(t, l.Stats().InboxDepth)
	next, err := f.nonces.Expected(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), next, "expected nonce re-read from chain")
}

func TestRecoveryHandler_ScaleShedsLoad(t *testing.T) {
	f := newFixture(t, approve("900"), safe(), false)
	l := NewLoop(LoopConfig{Workers: 3}, &countingEvaluator{}, nil, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actions := make(chan reliabilityDomain.RecoveryAction, 1)
	h := NewRecoveryHandler(l, f.nonces, sender, time.Minute, logger.NewNop())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, actions) }()

	actions <- reliabilityDomain.ActionScaleResources
	assert.Eventually(t, func() bool { return l.Stats().Shedding }, time.Second, time.Millisecond)

	close(actions)
	require.NoError(t, <-done)
}
