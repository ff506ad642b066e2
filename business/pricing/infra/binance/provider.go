package binance

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/business/pricing/app"
	"github.com/fd1az/flashguard/business/pricing/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/asset"
	"github.com/fd1az/flashguard/internal/logger"
)

var _ app.NamedSource = (*Provider)(nil)

// httpConfidencePenalty scales confidence for REST quotes, which lag the stream.
const httpConfidencePenalty = 0.95

// ProviderConfig holds configuration for the Binance provider.
type ProviderConfig struct {
	WebSocketURL   string
	HTTPURL        string
	StaleTimeout   time.Duration
	FetchTimeout   time.Duration
	EnableFallback bool
}

type tickerState struct {
	top        Top
	lastUpdate time.Time
}

// Provider implements PriceSource from book tickers, falling back to REST
// when the stream is stale.
type Provider struct {
	config     ProviderConfig
	logger     logger.LoggerInterface
	registry   *asset.Registry
	client     *Client
	httpClient *HTTPClient

	tickers   map[string]tickerState
	tickersMu sync.RWMutex

	tracer trace.Tracer
	now    func() time.Time
}

// NewProvider creates a provider for every registry token with an exchange symbol.
func NewProvider(cfg ProviderConfig, registry *asset.Registry, log logger.LoggerInterface) (*Provider, error) {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 5 * time.Second
	}

	var symbols []string
	for _, t := range registry.All() {
		if t.ExchangeSymbol != "" {
			symbols = append(symbols, t.ExchangeSymbol)
		}
	}

	client, err := NewClient(cfg.WebSocketURL, symbols, log)
	if err != nil {
		return nil, err
	}

	var httpClient *HTTPClient
	if cfg.EnableFallback {
		httpClient, err = NewHTTPClient(cfg.HTTPURL, cfg.FetchTimeout, log)
		if err != nil {
			log.Warn(context.Background(), "failed to create HTTP fallback client", "error", err)
		}
	}

	p := &Provider{
		config:     cfg,
		logger:     log,
		registry:   registry,
		client:     client,
		httpClient: httpClient,
		tickers:    make(map[string]tickerState),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	client.OnBookTicker(p.handleBookTicker)
	return p, nil
}

// Name implements NamedSource.
func (p *Provider) Name() string {
	return "binance"
}

// Connect opens the ticker stream.
func (p *Provider) Connect(ctx context.Context) error {
	return p.client.Connect(ctx)
}

// IsConnected reports whether the ticker stream is up.
func (p *Provider) IsConnected() bool {
	return p.client.IsConnected()
}

// Close closes the stream.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Price returns the mid price for token.
func (p *Provider) Price(ctx context.Context, token string) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "binance.price",
		trace.WithAttributes(attribute.String("token", token)),
	)
	defer span.End()

	t, ok := p.registry.BySymbol(token)
	if !ok || t.ExchangeSymbol == "" {
		return nil, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext("no exchange symbol for "+token))
	}
	symbol := t.ExchangeSymbol

	p.tickersMu.RLock()
	state, found := p.tickers[symbol]
	p.tickersMu.RUnlock()

	now := p.now()
	if found && now.Sub(state.lastUpdate) <= p.config.StaleTimeout {
		span.SetAttributes(attribute.String("via", "websocket"))
		return p.quote(t.Symbol, state, 1), nil
	}

	if p.httpClient == nil {
		return nil, apperror.New(apperror.CodePriceStale,
			apperror.WithContext("ticker stale for "+symbol))
	}

	p.logger.Debug(ctx, "ticker stale, using HTTP fallback", "symbol", symbol)
	resp, err := p.httpClient.GetBookTicker(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	top, err := resp.Parse()
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err))
	}

	state = tickerState{top: top, lastUpdate: now}
	p.tickersMu.Lock()
	p.tickers[symbol] = state
	p.tickersMu.Unlock()

	span.SetAttributes(attribute.String("via", "http"))
	return p.quote(t.Symbol, state, httpConfidencePenalty), nil
}

func (p *Provider) quote(token string, state tickerState, factor float64) *domain.Quote {
	// Wide books are less trustworthy: 1% spread costs 0.1 confidence.
	spread, _ := state.top.SpreadRatio().Float64()
	confidence := (1 - spread*10) * factor
	if confidence < 0 {
		confidence = 0
	}

	return &domain.Quote{
		Token:      token,
		Value:      state.top.Mid(),
		Source:     p.Name(),
		Kind:       domain.KindExchange,
		Confidence: confidence,
		ObservedAt: state.lastUpdate,
	}
}

func (p *Provider) handleBookTicker(event *BookTickerEvent) {
	top, err := event.Parse()
	if err != nil {
		p.logger.Debug(context.Background(), "failed to parse book ticker", "symbol", event.Symbol, "error", err)
		return
	}

	p.tickersMu.Lock()
	p.tickers[event.Symbol] = tickerState{top: top, lastUpdate: p.now()}
	p.tickersMu.Unlock()
}
