// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashguard/internal/asset"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry

	// Go runs a long-lived task until the application context ends.
	Go(name string, fn func(ctx context.Context) error)
	// OnClose registers a resource released on Close, in reverse order.
	OnClose(c io.Closer)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App implements the Monolith interface.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	container     di.Container

	group    *errgroup.Group
	groupCtx context.Context

	mu      sync.Mutex
	closers []io.Closer
}

// New creates a new App. Background tasks are bound to ctx.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	registry, err := asset.FromConfig(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", registry)

	group, groupCtx := errgroup.WithContext(ctx)

	return &App{
		config:        cfg,
		logger:        log,
		assetRegistry: registry,
		container:     container,
		group:         group,
		groupCtx:      groupCtx,
	}, nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *App) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *App) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *App) Container() di.Container {
	return a.container
}

func (a *App) Go(name string, fn func(ctx context.Context) error) {
	a.group.Go(func() error {
		a.logger.Debug(a.groupCtx, "background task started", "task", name)
		err := fn(a.groupCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(a.groupCtx, "background task failed", "task", name, "error", err)
			return err
		}
		a.logger.Debug(a.groupCtx, "background task stopped", "task", name)
		return nil
	})
}

func (a *App) OnClose(c io.Closer) {
	a.mu.Lock()
	a.closers = append(a.closers, c)
	a.mu.Unlock()
}

// RegisterModules registers all provided modules.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until every background task has returned.
func (a *App) Wait() error {
	return a.group.Wait()
}

// Close releases registered resources in reverse order.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
