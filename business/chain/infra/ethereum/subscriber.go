package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

// BlockSource fetches the current head; used for HTTP polling.
type BlockSource interface {
	LatestBlock(ctx context.Context) (*domain.BlockState, error)
}

// SubscriberConfig holds configuration for the head subscriber.
type SubscriberConfig struct {
	WSURL          string        // primary; empty means poll only
	PollInterval   time.Duration // HTTP fallback interval
	ReconnectDelay time.Duration
	BufferSize     int
}

// DefaultSubscriberConfig returns sensible defaults.
func DefaultSubscriberConfig(wsURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		PollInterval:   2 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     16,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber streams heads over WebSocket and falls back to polling.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface
	poller BlockSource

	state      domain.ConnectionState
	stateMu    sync.RWMutex
	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32

	blocks    chan *domain.BlockState
	done      chan struct{}
	closeOnce sync.Once
	emitMu    sync.RWMutex
	closed    bool

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a head subscriber. poller is required for fallback.
func NewSubscriber(cfg SubscriberConfig, poller BlockSource, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		poller: poller,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.BlockState, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total Ethereum blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total Ethereum subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP fallback was used"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe starts streaming heads. The channel closes on Close.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.BlockState, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(attribute.String("ws_url", s.config.WSURL)),
	)
	defer span.End()

	s.emitMu.RLock()
	closed := s.closed
	s.emitMu.RUnlock()
	if closed {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}

	s.setState(domain.StateConnecting)

	ws, err := s.dialWS(ctx)
	switch {
	case err == nil:
		go s.runWS(ctx, ws)
	case s.poller != nil:
		s.logger.Warn(ctx, "ws unavailable, polling over http", "error", err)
		s.usingHTTP.Store(true)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		go s.runPoller(ctx)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "no head source")
		s.setState(domain.StateDisconnected)
		return nil, apperror.New(apperror.CodeChainSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext("no websocket and no polling source"))
	}

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

func (s *Subscriber) dialWS(ctx context.Context) (*ethclient.Client, error) {
	if s.config.WSURL == "" {
		return nil, errors.New("ws url not configured")
	}
	client, err := ethclient.DialContext(ctx, s.config.WSURL)
	if err != nil {
		return nil, fmt.Errorf("dial ws: %w", err)
	}
	return client, nil
}

// runWS consumes newHeads until the subscription fails, then reconnects or
// switches to polling.
func (s *Subscriber) runWS(ctx context.Context, client *ethclient.Client) {
	defer client.Close()

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.reconnect(ctx)
		return
	}
	defer sub.Unsubscribe()

	s.logger.Info(ctx, "subscribed to new heads via ws")

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			s.reconnect(ctx)
			return
		case header := <-headers:
			if header != nil {
				s.emit(ctx, HeaderToBlock(header), false)
			}
		}
	}
}

func (s *Subscriber) reconnect(ctx context.Context) {
	s.setState(domain.StateReconnecting)
	s.reconnects.Add(1)

	select {
	case <-s.done:
		return
	case <-ctx.Done():
		return
	case <-time.After(s.config.ReconnectDelay):
	}

	ws, err := s.dialWS(ctx)
	if err == nil {
		s.usingHTTP.Store(false)
		s.setState(domain.StateConnected)
		go s.runWS(ctx, ws)
		return
	}

	if s.poller == nil {
		s.logger.Error(ctx, "ws reconnect failed and no polling source", "error", err)
		s.setState(domain.StateDisconnected)
		return
	}

	s.logger.Warn(ctx, "ws reconnect failed, switching to http", "error", err)
	s.usingHTTP.Store(true)
	s.metrics.httpFallbackUsed.Add(ctx, 1)
	s.setState(domain.StateConnected)
	go s.runPoller(ctx)
}

func (s *Subscriber) runPoller(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "starting http polling", "interval", s.config.PollInterval)

	s.poll(ctx)
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Subscriber) poll(ctx context.Context) {
	block, err := s.poller.LatestBlock(ctx)
	if err != nil {
		s.logger.Warn(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}
	if block.Number == s.lastBlock.Load() {
		return
	}
	s.emit(ctx, block, true)
}

// emit forwards a head without blocking. Lower numbers are forwarded too so
// reorgs reach the consensus check.
func (s *Subscriber) emit(ctx context.Context, block *domain.BlockState, fromHTTP bool) {
	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.Bool("from_http", fromHTTP)))
	s.lastBlock.Store(block.Number)

	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

// Close stops all loops and closes the block channel.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.emitMu.Lock()
		s.closed = true
		close(s.blocks)
		s.emitMu.Unlock()
		s.setState(domain.StateDisconnected)
	})
	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}
