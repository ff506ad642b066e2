package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bundle is an ordered set of signed transactions targeting one block.
type Bundle struct {
	Txs         [][]byte // raw signed transactions
	TargetBlock uint64
}

// TxHashes returns keccak256 of each raw transaction.
func (b *Bundle) TxHashes() []common.Hash {
	hashes := make([]common.Hash, len(b.Txs))
	for i, tx := range b.Txs {
		hashes[i] = crypto.Keccak256Hash(tx)
	}
	return hashes
}

// Fingerprint identifies bundles carrying the same transactions regardless
// of order or target block.
func (b *Bundle) Fingerprint() common.Hash {
	hashes := b.TxHashes()
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	buf := make([]byte, 0, len(hashes)*common.HashLength)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return crypto.Keccak256Hash(buf)
}

// Submission records one accepted relay submission.
type Submission struct {
	Relay       string
	BundleHash  common.Hash
	TargetBlock uint64
	Attempts    int
	SubmittedAt time.Time
}
