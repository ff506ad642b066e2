package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Receipt is the outcome of one mined transaction.
type Receipt struct {
	TxHash            common.Hash
	BlockNumber       uint64
	Reverted          bool
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// FeeWei returns gas used times the effective gas price.
func (r *Receipt) FeeWei() *big.Int {
	if r == nil || r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}
