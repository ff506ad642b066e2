package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashguard/business/trading"
	meterName  = "github.com/fd1az/flashguard/business/trading"
)

// PipelineConfig tunes a single evaluation.
type PipelineConfig struct {
	EvalTimeout  time.Duration
	QuoteTimeout time.Duration
}

// DefaultPipelineConfig returns production settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{EvalTimeout: 10 * time.Second, QuoteTimeout: 5 * time.Second}
}

// Pipeline evaluates one opportunity through Risk, Profit and Safety and
// dispatches it when all three pass in the same pass. The active trade
// slot is held for the whole sequence.
type Pipeline struct {
	config     PipelineConfig
	risk       RiskGate
	profit     ProfitVerifier
	safety     SafetyGate
	nonces     Nonces
	dispatcher Dispatcher
	settler    *Settler
	journal    Journal
	prices     PriceSource
	gas        GasOracle
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	now        func() time.Time

	decisions metric.Int64Counter
	latency   metric.Float64Histogram
}

// PipelineDeps are the collaborators of a pipeline. Journal, Prices and Gas
// are optional.
type PipelineDeps struct {
	Risk       RiskGate
	Profit     ProfitVerifier
	Safety     SafetyGate
	Nonces     Nonces
	Dispatcher Dispatcher
	Settler    *Settler
	Journal    Journal
	Prices     PriceSource
	Gas        GasOracle
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps, log logger.LoggerInterface) (*Pipeline, error) {
	if deps.Risk == nil || deps.Profit == nil || deps.Safety == nil || deps.Nonces == nil || deps.Dispatcher == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("pipeline requires risk, profit, safety, nonces and dispatcher"))
	}
	def := DefaultPipelineConfig()
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = def.EvalTimeout
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = def.QuoteTimeout
	}

	meter := otel.Meter(meterName)
	decisions, err := meter.Int64Counter(
		"trading_decisions_total",
		metric.WithDescription("Opportunity decisions by stage and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	latency, err := meter.Float64Histogram(
		"trading_evaluation_seconds",
		metric.WithDescription("Time to reach a decision"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Pipeline{
		config:     cfg,
		risk:       deps.Risk,
		profit:     deps.Profit,
		safety:     deps.Safety,
		nonces:     deps.Nonces,
		dispatcher: deps.Dispatcher,
		settler:    deps.Settler,
		journal:    deps.Journal,
		prices:     deps.Prices,
		gas:        deps.Gas,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		decisions:  decisions,
		latency:    latency,
	}, nil
}

// WithClock replaces the time source.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Evaluate runs the opportunity through every stage. It never returns an
// error: every failure becomes a rejected decision with reasons.
func (p *Pipeline) Evaluate(ctx context.Context, opp domain.Opportunity) domain.Decision {
	start := p.now()
	ctx, cancel := context.WithTimeout(ctx, p.config.EvalTimeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "trading.evaluate",
		trace.WithAttributes(attribute.String("opportunity_id", opp.ID)))
	defer span.End()

	d := p.evaluate(ctx, opp)
	d.OpportunityID = opp.ID
	d.Amount = opp.Amount
	d.DryRun = p.dispatcher.DryRun()
	d.DecidedAt = p.now()
	d.Elapsed = d.DecidedAt.Sub(start)

	outcome := "rejected"
	if d.Approved {
		outcome = "approved"
	}
	span.SetAttributes(attribute.String("stage", string(d.Stage)), attribute.String("outcome", outcome))
	p.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(d.Stage)),
		attribute.String("outcome", outcome),
	))
	p.latency.Record(ctx, d.Elapsed.Seconds())

	if d.Approved {
		p.logger.Info(ctx, "opportunity approved",
			"opportunity_id", opp.ID, "net_profit", d.NetProfit.StringFixed(2),
			"relay", d.Relay, "dry_run", d.DryRun)
	} else {
		p.logger.Debug(ctx, "opportunity rejected",
			"opportunity_id", opp.ID, "stage", string(d.Stage), "reasons", d.Reasons)
	}

	if p.journal != nil {
		// The journal outlives the evaluation deadline.
		jctx, jcancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.QuoteTimeout)
		if err := p.journal.Record(jctx, d); err != nil {
			p.logger.Warn(ctx, "journal write failed", "opportunity_id", opp.ID, "error", err)
		}
		jcancel()
	}
	return d
}

func (p *Pipeline) evaluate(ctx context.Context, opp domain.Opportunity) domain.Decision {
	var d domain.Decision

	if err := opp.Validate(); err != nil {
		d.Reject(domain.StageIntake, err.Error())
		return d
	}
	if !p.dispatcher.DryRun() && opp.Bundle() == nil {
		d.Reject(domain.StageIntake, "Opportunity carries no transactions")
		return d
	}

	// Risk
	if ok, reason := p.risk.Allow(opp.Amount); !ok {
		d.Reject(domain.StageRisk, reason)
		return d
	}
	release, err := p.risk.Acquire()
	if err != nil {
		d.Reject(domain.StageRisk, apperror.Reason(err))
		return d
	}
	defer release()

	// Profit
	market := p.marketGas(ctx)
	params := opp.ProfitParams()
	if market != nil {
		params.BaseFee = market.BaseFee
		params.PriorityFee = market.PriorityFee
	}
	val := p.profit.Verify(ctx, params)
	d.NetProfit = val.Estimate.Net
	d.Confidence = val.Estimate.Confidence
	if !val.Approved {
		d.Reject(domain.StageProfit, val.Reasons...)
		return d
	}

	// Safety
	sc, nonce, err := p.safetyContext(ctx, opp, market)
	if err != nil {
		d.Reject(domain.StageSafety, fmt.Sprintf("NONCE LOOKUP FAILED: %v", err))
		return d
	}
	rep := p.safety.Check(ctx, sc)
	d.SafetyLevel = rep.Level
	d.Warnings = rep.Warnings
	if !rep.Passed() {
		d.Reject(domain.StageSafety, rep.Issues...)
		return d
	}

	if err := ctx.Err(); err != nil {
		d.Reject(domain.StageDispatch, "Evaluation deadline exceeded")
		return d
	}

	// Dispatch
	return p.dispatch(ctx, opp, sc, nonce, val.Estimate.GasCost, d)
}

func (p *Pipeline) dispatch(ctx context.Context, opp domain.Opportunity, sc *safetyDomain.Context, nonce uint64, gas decimal.Decimal, d domain.Decision) domain.Decision {
	d.Stage = domain.StageDispatch
	if err := p.nonces.Track(opp.Sender, nonce, sc.PayloadHash); err != nil {
		// Another worker claimed the nonce; the next tick uses a fresh one.
		d.Reject(domain.StageDispatch, "NONCE CONFLICT: "+apperror.Reason(err))
		return d
	}

	sub, err := p.dispatcher.Dispatch(ctx, opp)
	if err != nil {
		p.nonces.Drop(opp.Sender, nonce)
		if !errors.Is(err, context.Canceled) {
			p.risk.RecordError(ctx, "dispatch", err.Error())
		}
		d.Reject(domain.StageDispatch, "Dispatch failed: "+apperror.Reason(err))
		return d
	}

	d.Approved = true
	d.Relay = sub.Relay
	d.BundleHash = sub.BundleHash.Hex()
	if p.settler != nil {
		p.settler.Watch(ctx, Pending{
			Opportunity: opp,
			Nonce:       nonce,
			Submission:  *sub,
			Expected:    d.NetProfit,
			GasEstimate: gas,
			DryRun:      p.dispatcher.DryRun(),
		})
	}
	return d
}

// safetyContext gathers what the sub-checks inspect. The nonce is the next
// free one for the sender; the transaction check validates it.
func (p *Pipeline) safetyContext(ctx context.Context, opp domain.Opportunity, market *chainDomain.GasPrice) (*safetyDomain.Context, uint64, error) {
	sc := &safetyDomain.Context{
		OpportunityID:  opp.ID,
		DiscoveredAt:   opp.DiscoveredAt,
		Sender:         opp.Sender,
		PayloadHash:    opp.PayloadHash(),
		Tokens:         opp.Path,
		Quotes:         p.quotes(ctx, opp.Path),
		SimulatedBlock: opp.SimulatedBlock,
		SimulatedHash:  opp.SimulatedHash,
		Simulation:     opp.Simulation,
		Bundle:         opp.Bundle(),
	}
	if market != nil {
		sc.MarketGasPrice = market.Wei()
		sc.OwnGasPrice = market.Wei()
	}
	if opp.MaxFeePerGas != nil {
		sc.OwnGasPrice = opp.MaxFeePerGas
	}

	nonce, err := p.nonces.NextFree(ctx, opp.Sender)
	if err != nil {
		return nil, 0, err
	}
	sc.Nonce = &nonce
	return sc, nonce, nil
}

func (p *Pipeline) marketGas(ctx context.Context) *chainDomain.GasPrice {
	if p.gas == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.QuoteTimeout)
	defer cancel()
	g, err := p.gas.GasPrice(ctx)
	if err != nil {
		p.logger.Debug(ctx, "market gas unavailable", "error", err)
		return nil
	}
	return g
}

// quotes fetches path prices concurrently. Missing quotes are skipped; the
// oracle check judges the ones that arrive.
func (p *Pipeline) quotes(ctx context.Context, tokens []string) []pricingDomain.Quote {
	if p.prices == nil || len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.QuoteTimeout)
	defer cancel()

	out := make([]*pricingDomain.Quote, len(tokens))
	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			q, err := p.prices.Price(ctx, tok)
			if err != nil {
				return
			}
			out[i] = q
		}(i, tok)
	}
	wg.Wait()

	quotes := make([]pricingDomain.Quote, 0, len(out))
	for _, q := range out {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}
