// Package ethereum provides Ethereum node adapters for the chain context.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/cache"
	"github.com/fd1az/flashguard/internal/circuitbreaker"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/flashguard/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/flashguard/business/chain/infra/ethereum"
)

// ClientConfig holds configuration for the RPC client.
type ClientConfig struct {
	RPCURL         string
	RequestTimeout time.Duration
	GasCacheTTL    time.Duration
	MaxGasPrice    *big.Int // base fee is clamped to this
	RequestsPerMin int
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(rpcURL string) ClientConfig {
	maxGas := new(big.Int)
	maxGas.SetString("500000000000", 10) // 500 gwei

	return ClientConfig{
		RPCURL:         rpcURL,
		RequestTimeout: 5 * time.Second,
		GasCacheTTL:    2 * time.Second,
		MaxGasPrice:    maxGas,
		RequestsPerMin: 600,
	}
}

type clientMetrics struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	latency     metric.Float64Histogram
	gasGwei     metric.Float64Gauge
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// Client implements app.ChainClient over JSON-RPC.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	gasCache *cache.Cache[string, *domain.GasPrice]
	limiter  *ratelimit.Limiter
	recent   *ratelimit.Window
	cb       *circuitbreaker.Breaker[any]

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a client. Call Connect before use.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	gasCache, err := cache.New[string, *domain.GasPrice](time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init gas cache: %w", err)
	}

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 600
	}

	c := &Client{
		config:   cfg,
		logger:   log,
		gasCache: gasCache,
		limiter:  ratelimit.New(rpm),
		recent:   ratelimit.NewWindow(time.Second),
		tracer:   otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("eth-rpc")
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.cb = circuitbreaker.New[any](cbCfg)

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.requests, err = meter.Int64Counter(
		"eth_rpc_requests_total",
		metric.WithDescription("Total JSON-RPC requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"eth_rpc_errors_total",
		metric.WithDescription("Total failed JSON-RPC requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"eth_rpc_latency_ms",
		metric.WithDescription("JSON-RPC request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.gasGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current base fee plus tip in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	c.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	c.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// Connect dials the node.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "eth.connect",
		trace.WithAttributes(attribute.String("url", c.config.RPCURL)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, c.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to dial ethereum node"))
	}

	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	c.logger.Info(ctx, "ethereum client connected", "url", c.config.RPCURL)
	return nil
}

// Name identifies the client when used as a bundle relay.
func (c *Client) Name() string {
	return "node"
}

// RecentRequests returns the number of RPC requests issued in the last second.
func (c *Client) RecentRequests() int {
	return c.recent.Count()
}

// call runs fn with rate limiting, a per-request timeout and the breaker.
func call[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context, ec *ethclient.Client) (T, error)) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, "eth."+op)
	defer span.End()

	c.clientMu.RLock()
	ec := c.client
	c.clientMu.RUnlock()
	if ec == nil {
		err := apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithContext("ethereum client not connected"))
		span.RecordError(err)
		return zero, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}
	c.recent.Add()

	timeout := c.config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attrs := metric.WithAttributes(attribute.String("method", op))
	start := time.Now()
	c.metrics.requests.Add(ctx, 1, attrs)

	res, err := c.cb.Execute(func() (any, error) {
		return fn(callCtx, ec)
	})
	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		c.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return zero, classify(err, op)
	}

	span.SetStatus(codes.Ok, "ok")
	return res.(T), nil
}

func classify(err error, op string) error {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState):
		return apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err),
			apperror.WithContext(op))
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.New(apperror.CodeChainTimeout, apperror.WithCause(err),
			apperror.WithContext(op))
	case errors.Is(err, ethereum.NotFound):
		return apperror.New(apperror.CodeBlockNotFound, apperror.WithCause(err),
			apperror.WithContext(op))
	default:
		return apperror.New(apperror.CodeChainRPCError, apperror.WithCause(err),
			apperror.WithContext(op))
	}
}

// LatestBlock returns the current head.
func (c *Client) LatestBlock(ctx context.Context) (*domain.BlockState, error) {
	header, err := call(ctx, c, "latest_block", func(ctx context.Context, ec *ethclient.Client) (*types.Header, error) {
		return ec.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return nil, err
	}
	return HeaderToBlock(header), nil
}

// BlockNumber returns the current head number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, "block_number", func(ctx context.Context, ec *ethclient.Client) (uint64, error) {
		return ec.BlockNumber(ctx)
	})
}

// GasPrice returns the latest base fee and suggested tip. Cached briefly.
func (c *Client) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	if price, found := c.gasCache.Get(ctx, "current"); found {
		c.metrics.cacheHits.Add(ctx, 1)
		return price, nil
	}
	c.metrics.cacheMisses.Add(ctx, 1)

	header, err := call(ctx, c, "base_fee", func(ctx context.Context, ec *ethclient.Client) (*types.Header, error) {
		return ec.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return nil, err
	}
	tip, err := call(ctx, c, "tip_cap", func(ctx context.Context, ec *ethclient.Client) (*big.Int, error) {
		return ec.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, err
	}

	baseFee := header.BaseFee
	if baseFee != nil && c.config.MaxGasPrice != nil && baseFee.Cmp(c.config.MaxGasPrice) > 0 {
		c.logger.Warn(ctx, "base fee exceeds max, clamping", "wei", baseFee.String())
		baseFee = new(big.Int).Set(c.config.MaxGasPrice)
	}

	price := domain.NewGasPrice(baseFee, tip)
	c.gasCache.Set(ctx, "current", price, c.config.GasCacheTTL)

	gwei, _ := price.Gwei().Float64()
	c.metrics.gasGwei.Record(ctx, gwei)

	return price, nil
}

// Nonce returns the pending nonce for account.
func (c *Client) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, "nonce", func(ctx context.Context, ec *ethclient.Client) (uint64, error) {
		return ec.PendingNonceAt(ctx, account)
	})
}

// BalanceAt returns the wei balance of account at block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, block uint64) (*big.Int, error) {
	return call(ctx, c, "balance", func(ctx context.Context, ec *ethclient.Client) (*big.Int, error) {
		return ec.BalanceAt(ctx, account, new(big.Int).SetUint64(block))
	})
}

// Receipt returns the receipt of a mined transaction. An unknown hash
// yields CodeBlockNotFound.
func (c *Client) Receipt(ctx context.Context, tx common.Hash) (*domain.Receipt, error) {
	rcpt, err := call(ctx, c, "receipt", func(ctx context.Context, ec *ethclient.Client) (*types.Receipt, error) {
		return ec.TransactionReceipt(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	out := &domain.Receipt{
		TxHash:            rcpt.TxHash,
		Reverted:          rcpt.Status == types.ReceiptStatusFailed,
		GasUsed:           rcpt.GasUsed,
		EffectiveGasPrice: rcpt.EffectiveGasPrice,
	}
	if rcpt.BlockNumber != nil {
		out.BlockNumber = rcpt.BlockNumber.Uint64()
	}
	return out, nil
}

// Call executes a read-only call against the latest state.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := call(ctx, c, "call", func(ctx context.Context, ec *ethclient.Client) ([]byte, error) {
		return ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		if apperror.GetCode(err) == apperror.CodeChainRPCError {
			return nil, apperror.New(apperror.CodeContractCallFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("eth_call to %s", to.Hex())))
		}
		return nil, err
	}
	return out, nil
}

type sendBundleArgs struct {
	Txs         []hexutil.Bytes `json:"txs"`
	BlockNumber hexutil.Uint64  `json:"blockNumber"`
}

type sendBundleResult struct {
	BundleHash common.Hash `json:"bundleHash"`
}

// SendBundle submits via eth_sendBundle on the connected endpoint, which
// must be a builder that supports it.
func (c *Client) SendBundle(ctx context.Context, txs [][]byte, targetBlock uint64) (common.Hash, error) {
	args := sendBundleArgs{BlockNumber: hexutil.Uint64(targetBlock)}
	for _, tx := range txs {
		args.Txs = append(args.Txs, tx)
	}

	res, err := call(ctx, c, "send_bundle", func(ctx context.Context, ec *ethclient.Client) (sendBundleResult, error) {
		var out sendBundleResult
		err := ec.Client().CallContext(ctx, &out, "eth_sendBundle", args)
		return out, err
	})
	if err != nil {
		return common.Hash{}, err
	}
	return res.BundleHash, nil
}

// Close releases the connection and cache.
func (c *Client) Close() error {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.gasCache.Close()
	return nil
}

// HeaderToBlock converts a go-ethereum header to a BlockState.
func HeaderToBlock(header *types.Header) *domain.BlockState {
	return &domain.BlockState{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		BaseFee:    header.BaseFee,
		Timestamp:  time.Unix(int64(header.Time), 0),
		GasLimit:   header.GasLimit,
		GasUsed:    header.GasUsed,
	}
}
