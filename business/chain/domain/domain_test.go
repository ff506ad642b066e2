package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBundle_FingerprintIgnoresOrderAndTarget(t *testing.T) {
	a := &Bundle{Txs: [][]byte{{0x01}, {0x02}}, TargetBlock: 100}
	b := &Bundle{Txs: [][]byte{{0x02}, {0x01}}, TargetBlock: 101}
	c := &Bundle{Txs: [][]byte{{0x01}, {0x03}}, TargetBlock: 100}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.TxHashes(), 2)
}

func TestGasPrice_Conversions(t *testing.T) {
	g := NewGasPrice(big.NewInt(30_000_000_000), big.NewInt(2_000_000_000))

	assert.Equal(t, "32", g.Gwei().String())
	assert.Equal(t, "41000000000", g.EffectiveWei(decimal.RequireFromString("1.3")).String())
	assert.True(t, WeiToGwei(nil).IsZero())

	zero := NewGasPrice(nil, nil)
	assert.Equal(t, int64(0), zero.Wei().Int64())
}

func TestBlockState_Extends(t *testing.T) {
	parent := &BlockState{Number: 10, Hash: common.HexToHash("0xaa")}
	child := &BlockState{Number: 11, ParentHash: common.HexToHash("0xaa")}
	orphan := &BlockState{Number: 11, ParentHash: common.HexToHash("0xbb")}

	assert.True(t, child.Extends(parent))
	assert.False(t, orphan.Extends(parent))
	assert.False(t, child.Extends(nil))
}
