package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashguard/internal/apperror"
)

type pendingKey struct {
	sender common.Address
	nonce  uint64
}

type pendingTx struct {
	payload common.Hash
	at      time.Time
}

// PendingRegistry tracks the next expected nonce per sender and the
// transactions claiming nonces that are not yet mined. All access goes
// through one mutex so nonce allocation is linearizable.
type PendingRegistry struct {
	source NonceSource

	mu       sync.Mutex
	expected map[common.Address]uint64
	pending  map[pendingKey]pendingTx
}

// NewPendingRegistry creates a registry that lazily seeds expected nonces
// from source.
func NewPendingRegistry(source NonceSource) *PendingRegistry {
	return &PendingRegistry{
		source:   source,
		expected: make(map[common.Address]uint64),
		pending:  make(map[pendingKey]pendingTx),
	}
}

// Expected returns the next nonce the chain will accept for sender,
// querying the source on first use.
func (r *PendingRegistry) Expected(ctx context.Context, sender common.Address) (uint64, error) {
	r.mu.Lock()
	n, ok := r.expected[sender]
	r.mu.Unlock()
	if ok {
		return n, nil
	}
	if r.source == nil {
		return 0, nil
	}

	n, err := r.source.Nonce(ctx, sender)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have seeded it meanwhile.
	if cur, ok := r.expected[sender]; ok {
		return cur, nil
	}
	r.expected[sender] = n
	return n, nil
}

// Lookup returns the payload pending at (sender, nonce).
func (r *PendingRegistry) Lookup(sender common.Address, nonce uint64) (common.Hash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.pending[pendingKey{sender, nonce}]
	return tx.payload, ok
}

// NextFree returns the lowest nonce at or above expected with no pending tx.
func (r *PendingRegistry) NextFree(ctx context.Context, sender common.Address) (uint64, error) {
	n, err := r.Expected(ctx, sender)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, taken := r.pending[pendingKey{sender, n}]; !taken {
			return n, nil
		}
		n++
	}
}

// Track claims nonce for payload. Claiming a nonce already held by a
// different payload fails with a nonce conflict; re-claiming with the same
// payload is a no-op.
func (r *PendingRegistry) Track(sender common.Address, nonce uint64, payload common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if exp, ok := r.expected[sender]; ok && nonce < exp {
		return apperror.New(apperror.CodeNonceConflict,
			apperror.WithContext(fmt.Sprintf("nonce %d below expected %d", nonce, exp)))
	}
	key := pendingKey{sender, nonce}
	if cur, ok := r.pending[key]; ok && cur.payload != payload {
		return apperror.New(apperror.CodeNonceConflict,
			apperror.WithContext(fmt.Sprintf("nonce %d held by %s", nonce, cur.payload.Hex())))
	}
	r.pending[key] = pendingTx{payload: payload, at: time.Now()}
	return nil
}

// Confirm settles a mined nonce and advances the expected nonce past it.
func (r *PendingRegistry) Confirm(sender common.Address, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, pendingKey{sender, nonce})
	if nonce+1 > r.expected[sender] {
		r.expected[sender] = nonce + 1
	}
}

// Drop releases a nonce whose transaction will never be mined.
func (r *PendingRegistry) Drop(sender common.Address, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, pendingKey{sender, nonce})
}

// Resync forgets the expected nonce so the next lookup re-reads the chain.
func (r *PendingRegistry) Resync(sender common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.expected, sender)
}

// PendingCount returns the number of unsettled transactions.
func (r *PendingRegistry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
