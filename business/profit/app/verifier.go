// Package app contains the profit verifier: net profit after gas, fees and
// slippage, scored for confidence against a minimum threshold.
package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/profit/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

const tracerName = "github.com/fd1az/flashguard/business/profit"

var weiPerEther = decimal.New(1, 18)

// Config tunes verification.
type Config struct {
	MinProfitUSD       decimal.Decimal
	MinProfitRatio     decimal.Decimal
	MinConfidence      float64
	GasSafetyMargin    decimal.Decimal // multiplier on base fee
	SlippageMargin     decimal.Decimal // multiplier on tolerance
	MaxSlippage        decimal.Decimal
	ProtocolFeeRate    decimal.Decimal // fraction of amount
	DefaultGasUnits    uint64
	PriorityFeeWei     *big.Int
	NativeSymbol       string
	ConfidenceFloor    float64
	LargeTradeUSD      decimal.Decimal
	VeryLargeTradeUSD  decimal.Decimal
	MaxPriceDivergence decimal.Decimal
	MaxLegDeviation    decimal.Decimal // claimed leg price vs the reference quote
	StaleConfidence    float64 // applied when the verifier falls back to its own last-known value
	WaitPollInterval   time.Duration
	WaitMaxDuration    time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MinProfitUSD:       decimal.NewFromInt(500),
		MinProfitRatio:     decimal.RequireFromString("0.001"),
		MinConfidence:      0.7,
		GasSafetyMargin:    decimal.RequireFromString("1.3"),
		SlippageMargin:     decimal.RequireFromString("1.5"),
		MaxSlippage:        decimal.RequireFromString("0.01"),
		ProtocolFeeRate:    decimal.RequireFromString("0.0009"),
		DefaultGasUnits:    300000,
		PriorityFeeWei:     big.NewInt(2_000_000_000),
		NativeSymbol:       "WETH",
		ConfidenceFloor:    0.5,
		LargeTradeUSD:      decimal.NewFromInt(20000),
		VeryLargeTradeUSD:  decimal.NewFromInt(50000),
		MaxPriceDivergence: decimal.RequireFromString("0.1"),
		MaxLegDeviation:    decimal.RequireFromString("0.05"),
		StaleConfidence:    0.8,
		WaitPollInterval:   10 * time.Second,
		WaitMaxDuration:    5 * time.Minute,
	}
}

// Verifier prices trades. Safe for concurrent use.
type Verifier struct {
	cfg    Config
	prices PriceSource
	gas    GasOracle
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time

	mu         sync.RWMutex
	lastNative decimal.Decimal
	lastGas    *chainDomain.GasPrice
	lastToken  map[string]decimal.Decimal
}

// NewVerifier creates a Verifier. gas may be nil when every Params carries
// its own fees.
func NewVerifier(cfg Config, prices PriceSource, gas GasOracle, log logger.LoggerInterface) *Verifier {
	if cfg.WaitPollInterval <= 0 {
		cfg.WaitPollInterval = 10 * time.Second
	}
	if cfg.WaitMaxDuration <= 0 {
		cfg.WaitMaxDuration = 5 * time.Minute
	}
	if cfg.StaleConfidence <= 0 {
		cfg.StaleConfidence = 0.8
	}
	if cfg.PriorityFeeWei == nil {
		cfg.PriorityFeeWei = new(big.Int)
	}
	return &Verifier{
		cfg:    cfg,
		prices: prices,
		gas:    gas,
		logger: log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		lastToken: make(map[string]decimal.Decimal),
	}
}

// Verify estimates the net profit of p and decides whether it clears the
// thresholds. Price or gas lookups that fail degrade confidence instead of
// failing the call.
func (v *Verifier) Verify(ctx context.Context, p domain.Params) domain.Validation {
	ctx, span := v.tracer.Start(ctx, "profit.verify",
		trace.WithAttributes(
			attribute.String("opportunity_id", p.OpportunityID),
			attribute.String("amount", p.Amount.String()),
		),
	)
	defer span.End()

	result := domain.Validation{OpportunityID: p.OpportunityID}

	if !p.Amount.IsPositive() || !p.BuyPrice.IsPositive() || !p.SellPrice.IsPositive() {
		result.Reasons = []string{"Invalid trade parameters"}
		return result
	}

	native, nativeConf, ok := v.nativePrice(ctx)
	if !ok {
		result.Reasons = []string{"Native token price unavailable"}
		return result
	}
	gas, gasConf, ok := v.gasPrice(ctx, p)
	if !ok {
		result.Reasons = []string{"Gas price unavailable"}
		return result
	}

	ref, refConf, ok := v.tokenPrice(ctx, p.Token)
	if !ok {
		result.Reasons = []string{"Token price unavailable: " + p.Token}
		return result
	}
	if reasons := v.checkLegs(p, ref); len(reasons) > 0 {
		result.Reasons = reasons
		return result
	}

	est := v.estimate(p, native, gas)
	est.Confidence = v.confidence(p) * nativeConf * gasConf * refConf
	result.Estimate = est

	if est.Net.LessThan(v.cfg.MinProfitUSD) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Net profit $%s below threshold $%s",
			est.Net.StringFixed(2), v.cfg.MinProfitUSD.StringFixed(2)))
		result.RecommendedWait = RecommendedWait(est.Net)
	}
	if v.cfg.MinProfitRatio.IsPositive() && est.Net.Div(p.Amount).LessThan(v.cfg.MinProfitRatio) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Profit ratio %s below minimum %s",
			est.Net.Div(p.Amount).StringFixed(4), v.cfg.MinProfitRatio.String()))
	}
	if est.Confidence < v.cfg.MinConfidence {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Low confidence score: %.2f", est.Confidence))
	}
	if v.cfg.MaxSlippage.IsPositive() && p.SlippageTolerance.GreaterThan(v.cfg.MaxSlippage) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Slippage tolerance %s exceeds maximum %s",
			p.SlippageTolerance.String(), v.cfg.MaxSlippage.String()))
	}

	result.Approved = len(result.Reasons) == 0
	span.SetAttributes(
		attribute.Bool("approved", result.Approved),
		attribute.String("net_profit", est.Net.StringFixed(2)),
	)
	return result
}

// estimate computes the cost breakdown. Net is derived from the other four
// fields so the identity holds exactly.
func (v *Verifier) estimate(p domain.Params, native decimal.Decimal, gas *chainDomain.GasPrice) domain.Estimate {
	gross := p.Amount.Mul(p.SellPrice.Sub(p.BuyPrice)).Div(p.BuyPrice)

	units := p.GasUnits
	if units == 0 {
		units = v.cfg.DefaultGasUnits
	}
	gasWei := decimal.NewFromInt(int64(units)).Mul(gas.EffectiveWei(v.cfg.GasSafetyMargin))
	gasCost := gasWei.Div(weiPerEther).Mul(native)

	fee := p.Amount.Mul(v.cfg.ProtocolFeeRate)
	slippage := p.Amount.Mul(p.SlippageTolerance).Mul(v.cfg.SlippageMargin)

	return domain.Estimate{
		Gross:        gross,
		GasCost:      gasCost,
		ProtocolFee:  fee,
		SlippageCost: slippage,
		Net:          gross.Sub(gasCost).Sub(fee).Sub(slippage),
		ComputedAt:   v.now(),
	}
}

// confidence scores trade shape: size, tolerance and leg divergence.
func (v *Verifier) confidence(p domain.Params) float64 {
	c := 1.0

	switch {
	case p.Amount.GreaterThan(v.cfg.VeryLargeTradeUSD):
		c -= 0.2
	case p.Amount.GreaterThan(v.cfg.LargeTradeUSD):
		c -= 0.1
	}

	switch {
	case p.SlippageTolerance.GreaterThan(decimal.RequireFromString("0.01")):
		c -= 0.15
	case p.SlippageTolerance.GreaterThan(decimal.RequireFromString("0.005")):
		c -= 0.05
	}

	hi := decimal.Max(p.BuyPrice, p.SellPrice)
	if p.SellPrice.Sub(p.BuyPrice).Abs().Div(hi).GreaterThan(v.cfg.MaxPriceDivergence) {
		c -= 0.1
	}

	if c < v.cfg.ConfidenceFloor {
		c = v.cfg.ConfidenceFloor
	}
	return c
}

func (v *Verifier) nativePrice(ctx context.Context) (decimal.Decimal, float64, bool) {
	q, err := v.prices.Price(ctx, v.cfg.NativeSymbol)
	if err == nil && q.Value.IsPositive() {
		v.mu.Lock()
		v.lastNative = q.Value
		v.mu.Unlock()
		return q.Value, q.Confidence, true
	}

	v.mu.RLock()
	last := v.lastNative
	v.mu.RUnlock()
	if !last.IsPositive() {
		v.logger.Warn(ctx, "native price unavailable", "symbol", v.cfg.NativeSymbol, "error", err)
		return decimal.Zero, 0, false
	}
	v.logger.Debug(ctx, "using last-known native price", "symbol", v.cfg.NativeSymbol, "error", err)
	return last, v.cfg.StaleConfidence, true
}

// checkLegs rejects claimed venue prices that stray from the reference
// quote of the traded token.
func (v *Verifier) checkLegs(p domain.Params, ref decimal.Decimal) []string {
	if !v.cfg.MaxLegDeviation.IsPositive() {
		return nil
	}
	var reasons []string
	for _, leg := range []struct {
		name  string
		price decimal.Decimal
	}{{"Buy", p.BuyPrice}, {"Sell", p.SellPrice}} {
		dev := leg.price.Sub(ref).Abs().Div(ref)
		if dev.GreaterThan(v.cfg.MaxLegDeviation) {
			reasons = append(reasons, fmt.Sprintf("%s price %s deviates %s%% from reference %s",
				leg.name, leg.price.String(), dev.Shift(2).StringFixed(2), ref.String()))
		}
	}
	return reasons
}

// tokenPrice returns the reference quote of token, falling back to the
// last value seen for it at reduced confidence.
func (v *Verifier) tokenPrice(ctx context.Context, token string) (decimal.Decimal, float64, bool) {
	q, err := v.prices.Price(ctx, token)
	if err == nil && q.Value.IsPositive() {
		v.mu.Lock()
		v.lastToken[token] = q.Value
		v.mu.Unlock()
		return q.Value, q.Confidence, true
	}

	v.mu.RLock()
	last := v.lastToken[token]
	v.mu.RUnlock()
	if !last.IsPositive() {
		v.logger.Warn(ctx, "token price unavailable", "symbol", token, "error", err)
		return decimal.Zero, 0, false
	}
	v.logger.Debug(ctx, "using last-known token price", "symbol", token, "error", err)
	return last, v.cfg.StaleConfidence, true
}

func (v *Verifier) gasPrice(ctx context.Context, p domain.Params) (*chainDomain.GasPrice, float64, bool) {
	if p.BaseFee != nil {
		prio := p.PriorityFee
		if prio == nil {
			prio = v.cfg.PriorityFeeWei
		}
		return chainDomain.NewGasPrice(p.BaseFee, prio), 1, true
	}
	if v.gas != nil {
		gp, err := v.gas.GasPrice(ctx)
		if err == nil {
			v.mu.Lock()
			v.lastGas = gp
			v.mu.Unlock()
			return gp, 1, true
		}
		v.logger.Debug(ctx, "gas price lookup failed", "error", err)
	}

	v.mu.RLock()
	last := v.lastGas
	v.mu.RUnlock()
	if last == nil {
		return nil, 0, false
	}
	return last, v.cfg.StaleConfidence, true
}

// RecommendedWait suggests how long to wait before re-checking a trade whose
// net profit fell short.
func RecommendedWait(net decimal.Decimal) time.Duration {
	switch {
	case net.LessThan(decimal.NewFromInt(100)):
		return 5 * time.Minute
	case net.LessThan(decimal.NewFromInt(300)):
		return 3 * time.Minute
	case net.LessThan(decimal.NewFromInt(500)):
		return time.Minute
	default:
		return 0
	}
}

// WaitForProfitIncrease re-verifies p until it is approved, ctx ends or the
// wait budget runs out. It returns the last validation. This never feeds
// the dispatcher; callers use it to explore whether a trade is worth
// revisiting.
func (v *Verifier) WaitForProfitIncrease(ctx context.Context, p domain.Params) (domain.Validation, bool) {
	result := v.Verify(ctx, p)
	if result.Approved {
		return result, true
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.WaitMaxDuration)
	defer cancel()

	ticker := time.NewTicker(v.cfg.WaitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return result, false
		case <-ticker.C:
			result = v.Verify(ctx, p)
			if result.Approved {
				v.logger.Info(ctx, "profit reached threshold",
					"opportunity_id", p.OpportunityID,
					"net_profit", result.Estimate.Net.StringFixed(2),
				)
				return result, true
			}
		}
	}
}
