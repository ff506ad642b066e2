package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("relay")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour

	var transitions []State
	cfg.OnStateChange = func(_ string, _, to State) { transitions = append(transitions, to) }

	b := New[int](cfg)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, transitions)

	_, err := b.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrOpenState)
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	b := New[string](DefaultConfig("rpc"))
	v, err := b.Execute(func() (string, error) { return "ok", nil })
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, "rpc", b.Name())
}
