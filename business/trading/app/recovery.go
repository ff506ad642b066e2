package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	reliabilityDomain "github.com/fd1az/flashguard/business/reliability/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

// RecoveryHandler applies supervisor actions to the trading loop.
type RecoveryHandler struct {
	loop    *Loop
	nonces  Nonces
	sender  common.Address
	shedFor time.Duration
	logger  logger.LoggerInterface
}

// NewRecoveryHandler creates a handler. shedFor is how long a
// SCALE_RESOURCES action keeps the loop on one worker.
func NewRecoveryHandler(loop *Loop, nonces Nonces, sender common.Address, shedFor time.Duration, log logger.LoggerInterface) *RecoveryHandler {
	if shedFor <= 0 {
		shedFor = 5 * time.Minute
	}
	return &RecoveryHandler{loop: loop, nonces: nonces, sender: sender, shedFor: shedFor, logger: log}
}

// Run handles actions until ctx is done or the channel closes.
func (h *RecoveryHandler) Run(ctx context.Context, actions <-chan reliabilityDomain.RecoveryAction) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-actions:
			if !ok {
				return nil
			}
			h.Handle(ctx, a)
		}
	}
}

// Handle applies one action.
func (h *RecoveryHandler) Handle(ctx context.Context, a reliabilityDomain.RecoveryAction) {
	switch a {
	case reliabilityDomain.ActionScaleResources:
		h.loop.Shed(ctx, h.shedFor)
	case reliabilityDomain.ActionRestartService:
		// Queued opportunities are stale by now and the chain nonce may
		// have moved while degraded.
		dropped := h.loop.Drain()
		h.nonces.Resync(h.sender)
		h.logger.Warn(ctx, "trading state reset", "dropped", dropped)
	case reliabilityDomain.ActionEmergencyStop:
		dropped := h.loop.Drain()
		h.logger.Error(ctx, "emergency stop, inbox drained", "dropped", dropped)
	case reliabilityDomain.ActionSwitchBackup:
		h.logger.Info(ctx, "backup switch requested; relays already fail over per submission")
	case reliabilityDomain.ActionNone:
	}
}
