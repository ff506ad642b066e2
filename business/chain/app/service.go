package app

import (
	"context"
	"sync"

	"github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

// HeadHandler is called for every new head, in order.
type HeadHandler func(ctx context.Context, block *domain.BlockState)

// ChainService fans new heads out to registered handlers.
type ChainService struct {
	client     ChainClient
	subscriber HeadSubscriber
	log        logger.LoggerInterface

	mu       sync.RWMutex
	handlers []HeadHandler
}

// NewChainService creates a new ChainService.
func NewChainService(client ChainClient, subscriber HeadSubscriber, log logger.LoggerInterface) *ChainService {
	return &ChainService{client: client, subscriber: subscriber, log: log}
}

// Client returns the underlying chain client.
func (s *ChainService) Client() ChainClient {
	return s.client
}

// OnHead registers a handler. Handlers must not block.
func (s *ChainService) OnHead(h HeadHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Run subscribes to heads and dispatches them until ctx is done or the
// subscription closes.
func (s *ChainService) Run(ctx context.Context) error {
	heads, err := s.subscriber.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-heads:
			if !ok {
				s.log.Warn(ctx, "head subscription closed")
				return nil
			}
			s.dispatch(ctx, block)
		}
	}
}

func (s *ChainService) dispatch(ctx context.Context, block *domain.BlockState) {
	s.mu.RLock()
	handlers := make([]HeadHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, block)
	}
}

// ConnectionState returns the current subscriber state.
func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}
