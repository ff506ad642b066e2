package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type recordingModule struct {
	registered, started bool
}

func (m *recordingModule) RegisterServices(c di.Container) error {
	m.registered = true
	c.Register("probe", 42)
	return nil
}

func (m *recordingModule) Startup(_ context.Context, mono Monolith) error {
	m.started = mono.Services().Get("probe").(int) == 42
	return nil
}

func TestApp_ModuleLifecycle(t *testing.T) {
	app, err := New(context.Background(), &config.Config{}, logger.NewNop())
	require.NoError(t, err)

	m := &recordingModule{}
	require.NoError(t, app.RegisterModules(m))
	require.NoError(t, app.StartModules(context.Background(), m))

	assert.True(t, m.registered)
	assert.True(t, m.started)
	assert.NotNil(t, app.AssetRegistry())
}

func TestApp_GoPropagatesFailureAndCancelsSiblings(t *testing.T) {
	app, err := New(context.Background(), &config.Config{}, logger.NewNop())
	require.NoError(t, err)

	boom := errors.New("boom")
	app.Go("failing", func(context.Context) error { return boom })
	app.Go("waiting", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, app.Wait(), boom)
}

func TestApp_CloseRunsInReverse(t *testing.T) {
	app, err := New(context.Background(), &config.Config{}, logger.NewNop())
	require.NoError(t, err)

	var order []int
	app.OnClose(closerFunc(func() error { order = append(order, 1); return nil }))
	app.OnClose(closerFunc(func() error { order = append(order, 2); return errors.New("x") }))

	assert.Error(t, app.Close())
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, app.Close())
}
