package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

type stubRelay struct {
	name    string
	mu      sync.Mutex
	calls   int
	failFor int // number of initial calls that fail
}

func (r *stubRelay) Name() string { return r.name }

func (r *stubRelay) SendBundle(_ context.Context, _ [][]byte, _ uint64) (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failFor {
		return common.Hash{}, errors.New("relay busy")
	}
	return common.HexToHash("0xb0b"), nil
}

func (r *stubRelay) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func fastBuilderConfig() BuilderConfig {
	cfg := DefaultBuilderConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func testBundle() *chainDomain.Bundle {
	return &chainDomain.Bundle{Txs: [][]byte{{0x01, 0x02}, {0x03}}, TargetBlock: 101}
}

func TestBuilder_SubmitFallsThroughRelays(t *testing.T) {
	primary := &stubRelay{name: "primary", failFor: 100}
	backup := &stubRelay{name: "backup"}
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop(), primary, backup)

	sub, err := b.Submit(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, "backup", sub.Relay)
	assert.Equal(t, 1, sub.Attempts)
	assert.Equal(t, RelayStats{Failed: 1}, b.Stats()["primary"])
	assert.Equal(t, RelayStats{Accepted: 1}, b.Stats()["backup"])
}

func TestBuilder_SubmitRetriesRounds(t *testing.T) {
	relay := &stubRelay{name: "only", failFor: 2}
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop(), relay)

	sub, err := b.Submit(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Attempts)
	assert.Equal(t, 3, relay.Calls())
}

func TestBuilder_SubmitExhausted(t *testing.T) {
	a := &stubRelay{name: "a", failFor: 100}
	c := &stubRelay{name: "c", failFor: 100}
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop(), a, c)

	_, err := b.Submit(context.Background(), testBundle())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeRelayExhausted, apperror.GetCode(err))
	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 3, c.Calls())
}

func TestBuilder_DuplicateWithinWindow(t *testing.T) {
	now := epoch
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop(), &stubRelay{name: "r"})
	b.now = func() time.Time { return now }

	_, err := b.Submit(context.Background(), testBundle())
	require.NoError(t, err)

	// Same transactions in a different order and block.
	reordered := &chainDomain.Bundle{Txs: [][]byte{{0x03}, {0x01, 0x02}}, TargetBlock: 102}
	res := b.Check(context.Background(), &domain.Context{Bundle: reordered})
	require.Equal(t, domain.LevelReject, res.Level)
	assert.Contains(t, res.Issues[0], "POSSIBLE OVERWRITE")

	_, err = b.Submit(context.Background(), reordered)
	assert.Equal(t, apperror.CodeBundleDuplicate, apperror.GetCode(err))

	now = now.Add(6 * time.Second)
	res = b.Check(context.Background(), &domain.Context{Bundle: reordered})
	assert.Equal(t, domain.LevelSafe, res.Level)
}

func TestBuilder_CheckWithoutRelays(t *testing.T) {
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop())

	assert.Equal(t, domain.LevelSafe, b.Check(context.Background(), &domain.Context{}).Level)
	assert.Equal(t, domain.LevelReject, b.Check(context.Background(), &domain.Context{Bundle: testBundle()}).Level)
}

func TestBuilder_SubmitRejectsEmptyBundle(t *testing.T) {
	b := NewBuilderCheck(fastBuilderConfig(), logger.NewNop(), &stubRelay{name: "r"})
	_, err := b.Submit(context.Background(), &chainDomain.Bundle{})
	assert.Equal(t, apperror.CodeBundleInvalid, apperror.GetCode(err))
}
