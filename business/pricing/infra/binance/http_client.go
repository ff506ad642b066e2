package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/httpclient"
	"github.com/fd1az/flashguard/internal/logger"
)

const (
	BaseAPIURL = "https://api.binance.com"

	bookTickerEndpoint = "/api/v3/ticker/bookTicker"
	httpTimeout        = 5 * time.Second
)

// HTTPClient provides REST access for when the stream is stale.
type HTTPClient struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a new Binance HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration, log logger.LoggerInterface) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	if timeout <= 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &HTTPClient{client: client, logger: log, tracer: tracer}, nil
}

// GetBookTicker fetches the best bid/ask for symbol.
func (c *HTTPClient) GetBookTicker(ctx context.Context, symbol string) (*BookTickerResponse, error) {
	ctx, span := c.tracer.Start(ctx, "binance.http.book_ticker",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	var result BookTickerResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "bookTicker")),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, bookTickerEndpoint)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithCause(err),
			apperror.WithContext("book ticker "+symbol))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	c.logger.Debug(ctx, "fetched book ticker via HTTP", "symbol", symbol)
	return &result, nil
}

// APIError is an error response from the Binance API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
