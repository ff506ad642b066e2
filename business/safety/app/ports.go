// Package app contains the safety gate and its seven sub-checks.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashguard/business/safety/domain"
)

// Check is one independent protection layer.
type Check interface {
	Name() string
	Check(ctx context.Context, sc *domain.Context) domain.CheckResult
}

// NonceSource reports the pending nonce of an account.
type NonceSource interface {
	Nonce(ctx context.Context, account common.Address) (uint64, error)
}

// HeadProbe reports the chain head number.
type HeadProbe interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// RequestMeter reports requests issued in the last second.
type RequestMeter interface {
	RecentRequests() int
}

// FeeTokens reports tokens that charge a transfer fee.
type FeeTokens interface {
	IsFeeOnTransfer(symbol string) bool
}

// Escalator halts trading.
type Escalator interface {
	EmergencyStop(ctx context.Context, reason string)
}
