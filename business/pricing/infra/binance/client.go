package binance

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/flashguard/business/pricing/infra/binance"
	meterName  = "github.com/fd1az/flashguard/business/pricing/infra/binance"

	BaseWSURL = "wss://stream.binance.com:9443"
)

type clientMetrics struct {
	messagesReceived metric.Int64Counter
	parseErrors      metric.Int64Counter
}

// Client streams book tickers over a combined-stream WebSocket.
type Client struct {
	baseURL string
	symbols []string
	logger  logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	onBookTicker func(*BookTickerEvent)
	handlersMu   sync.RWMutex

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a stream client for symbols (e.g. ETHUSDT).
func NewClient(baseURL string, symbols []string, log logger.LoggerInterface) (*Client, error) {
	if baseURL == "" {
		baseURL = BaseWSURL
	}
	c := &Client{
		baseURL: baseURL,
		symbols: symbols,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	c.metrics = &clientMetrics{}
	var err error
	c.metrics.messagesReceived, err = meter.Int64Counter("binance_messages_total",
		metric.WithDescription("Total messages received"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	c.metrics.parseErrors, err = meter.Int64Counter("binance_parse_errors_total",
		metric.WithDescription("Message parse errors"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

// OnBookTicker registers a handler for book ticker events.
func (c *Client) OnBookTicker(handler func(*BookTickerEvent)) {
	c.handlersMu.Lock()
	c.onBookTicker = handler
	c.handlersMu.Unlock()
}

// Connect dials the combined stream. wsconn reconnects on its own afterwards.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "binance.connect",
		trace.WithAttributes(attribute.StringSlice("symbols", c.symbols)),
	)
	defer span.End()

	streamURL, err := c.streamURL()
	if err != nil {
		return err
	}

	conn, err := wsconn.New(wsconn.DefaultConfig(streamURL, "binance"))
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}
	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			c.logger.Warn(context.Background(), "binance stream state change", "state", string(state), "error", err)
		}
	})

	if err := conn.ConnectWithRetry(ctx); err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to Binance"))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info(ctx, "binance stream connected", "symbols", c.symbols)
	return nil
}

func (c *Client) streamURL() (string, error) {
	if len(c.symbols) == 0 {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no exchange symbols configured"))
	}

	streams := make([]string, 0, len(c.symbols))
	for _, sym := range c.symbols {
		streams = append(streams, BookTickerStream(sym))
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// subscription acks carry no stream
		return
	}
	if !strings.HasSuffix(event.Stream, "@bookTicker") {
		return
	}

	var ticker BookTickerEvent
	if err := json.Unmarshal(event.Data, &ticker); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		return
	}

	c.handlersMu.RLock()
	handler := c.onBookTicker
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(&ticker)
	}
}

// IsConnected returns whether the stream is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the stream.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
