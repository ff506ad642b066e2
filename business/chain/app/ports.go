// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashguard/business/chain/domain"
)

// ChainClient is the opaque RPC capability the gate consumes.
type ChainClient interface {
	LatestBlock(ctx context.Context) (*domain.BlockState, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*domain.GasPrice, error)
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, block uint64) (*big.Int, error)
	Receipt(ctx context.Context, tx common.Hash) (*domain.Receipt, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendBundle(ctx context.Context, txs [][]byte, targetBlock uint64) (common.Hash, error)
}

// BundleRelay accepts bundles for block inclusion.
type BundleRelay interface {
	Name() string
	SendBundle(ctx context.Context, txs [][]byte, targetBlock uint64) (common.Hash, error)
}

// HeadSubscriber streams new block headers.
type HeadSubscriber interface {
	Subscribe(ctx context.Context) (<-chan *domain.BlockState, error)
	State() domain.ConnectionState
}

// RequestMeter reports how many RPC requests were issued recently.
type RequestMeter interface {
	RecentRequests() int
}
