package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashguard/business/safety/domain"
)

// TransactionCheck guards nonce ordering and token transfer semantics.
type TransactionCheck struct {
	registry  *PendingRegistry
	feeTokens FeeTokens
	maxGap    uint64
}

// NewTransactionCheck creates the check. feeTokens may be nil.
func NewTransactionCheck(registry *PendingRegistry, feeTokens FeeTokens, maxNonceGap uint64) *TransactionCheck {
	if maxNonceGap == 0 {
		maxNonceGap = 5
	}
	return &TransactionCheck{registry: registry, feeTokens: feeTokens, maxGap: maxNonceGap}
}

func (t *TransactionCheck) Name() string { return domain.CheckTransaction }

// Registry exposes the pending transaction registry.
func (t *TransactionCheck) Registry() *PendingRegistry { return t.registry }

// Check validates the context nonce against the expected nonce and the
// pending registry. When the context has no nonce the next free one is
// reported in metadata under "nonce".
func (t *TransactionCheck) Check(ctx context.Context, sc *domain.Context) domain.CheckResult {
	if sc == nil {
		return domain.Safe(domain.CheckTransaction)
	}

	var issues, warnings []string
	meta := map[string]any{}

	if t.feeTokens != nil {
		for _, tok := range sc.Tokens {
			if t.feeTokens.IsFeeOnTransfer(tok) {
				warnings = append(warnings, fmt.Sprintf("FEE TOKEN: %s charges a transfer fee", tok))
			}
		}
	}

	if sc.Sender != (common.Address{}) {
		expected, err := t.registry.Expected(ctx, sc.Sender)
		if err != nil {
			issues = append(issues, fmt.Sprintf("NONCE LOOKUP FAILED: %v", err))
		} else {
			meta["expected_nonce"] = expected
			issues, warnings = t.checkNonce(ctx, sc, expected, issues, warnings, meta)
		}
	}

	res := domain.NewResult(domain.CheckTransaction, issues, warnings)
	for k, v := range meta {
		res = res.With(k, v)
	}
	return res
}

func (t *TransactionCheck) checkNonce(ctx context.Context, sc *domain.Context, expected uint64, issues, warnings []string, meta map[string]any) ([]string, []string) {
	if sc.Nonce == nil {
		next, err := t.registry.NextFree(ctx, sc.Sender)
		if err != nil {
			return append(issues, fmt.Sprintf("NONCE LOOKUP FAILED: %v", err)), warnings
		}
		meta["nonce"] = next
		if next-expected > t.maxGap {
			warnings = append(warnings, fmt.Sprintf("NONCE GAP: %d pending ahead of expected %d", next-expected, expected))
		}
		return issues, warnings
	}

	nonce := *sc.Nonce
	meta["nonce"] = nonce
	switch {
	case nonce < expected:
		issues = append(issues, fmt.Sprintf("NONCE TOO LOW: expected %d, got %d", expected, nonce))
	case nonce-expected > t.maxGap:
		warnings = append(warnings, fmt.Sprintf("NONCE GAP: %d is %d ahead of expected %d", nonce, nonce-expected, expected))
	}
	if held, ok := t.registry.Lookup(sc.Sender, nonce); ok && held != sc.PayloadHash {
		issues = append(issues, fmt.Sprintf("NONCE CONFLICT: different tx pending at nonce %d", nonce))
	}
	return issues, warnings
}
