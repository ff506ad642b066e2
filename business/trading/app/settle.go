package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

var weiPerEther = decimal.New(1, 18)

// Pending is a dispatched bundle awaiting its target block.
type Pending struct {
	Opportunity domain.Opportunity
	Nonce       uint64
	Submission  chainDomain.Submission
	Expected    decimal.Decimal // estimated net profit, USD
	GasEstimate decimal.Decimal // estimated gas cost included in Expected, USD
	DryRun      bool
}

// SettlerConfig tunes settlement.
type SettlerConfig struct {
	// MaxWait is how many blocks past the target an unreadable outcome is
	// retried before the nonce is released and re-read from the chain.
	MaxWait      uint64
	ReadTimeout  time.Duration
	NativeSymbol string
}

// DefaultSettlerConfig returns production settings.
func DefaultSettlerConfig() SettlerConfig {
	return SettlerConfig{MaxWait: 5, ReadTimeout: 5 * time.Second, NativeSymbol: "WETH"}
}

// Settler feeds dispatch outcomes back into the risk ledger, the nonce
// registry and the simulation tracker. A bundle is included when the
// sender's chain nonce has moved past the nonce it used and its
// transactions have receipts. Included bundles are booked at realized
// profit: gas is read from the receipts, and a reverted bundle books the
// larger of its fees and the sender's native balance drop.
type Settler struct {
	config SettlerConfig
	risk   RiskGate
	nonces Nonces
	sims   SimulationTracker
	reader ChainReader
	prices PriceSource
	logger logger.LoggerInterface

	mu         sync.Mutex
	pending    []Pending
	lastNative decimal.Decimal
}

// NewSettler creates a settler. sims may be nil.
func NewSettler(cfg SettlerConfig, risk RiskGate, nonces Nonces, sims SimulationTracker, reader ChainReader, prices PriceSource, log logger.LoggerInterface) *Settler {
	def := DefaultSettlerConfig()
	if cfg.MaxWait == 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = def.NativeSymbol
	}
	return &Settler{
		config: cfg,
		risk:   risk,
		nonces: nonces,
		sims:   sims,
		reader: reader,
		prices: prices,
		logger: log,
	}
}

// Watch registers a dispatched bundle. Dry runs settle at once as paper
// trades at the expected profit.
func (s *Settler) Watch(ctx context.Context, p Pending) {
	if p.DryRun {
		s.nonces.Drop(p.Opportunity.Sender, p.Nonce)
		s.recordSimulation(p, nil)
		s.risk.RecordResult(ctx, true, p.Expected)
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, p)
	s.mu.Unlock()
}

// PendingCount returns the number of unsettled bundles.
func (s *Settler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// OnHead settles every bundle whose target block is at or below the head.
func (s *Settler) OnHead(ctx context.Context, head *chainDomain.BlockState) {
	if head == nil {
		return
	}

	s.mu.Lock()
	var due, keep []Pending
	for _, p := range s.pending {
		if head.Number >= p.Submission.TargetBlock {
			due = append(due, p)
		} else {
			keep = append(keep, p)
		}
	}
	s.pending = keep
	s.mu.Unlock()

	var retry []Pending
	for _, p := range due {
		if !s.settle(ctx, head.Number, p) {
			retry = append(retry, p)
		}
	}

	if len(retry) > 0 {
		s.mu.Lock()
		s.pending = append(s.pending, retry...)
		s.mu.Unlock()
	}
}

// outcome is the realized result of an included bundle.
type outcome struct {
	success bool
	profit  decimal.Decimal
	fee     decimal.Decimal
	block   uint64
}

// settle reports whether p was resolved.
func (s *Settler) settle(ctx context.Context, head uint64, p Pending) bool {
	sender := p.Opportunity.Sender
	rctx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()

	mined, err := s.reader.Nonce(rctx, sender)
	if err != nil {
		if head < p.Submission.TargetBlock+s.config.MaxWait {
			return false
		}
		s.logger.Warn(ctx, "bundle outcome unknown, releasing nonce",
			"opportunity_id", p.Opportunity.ID, "nonce", p.Nonce, "error", err)
		s.nonces.Drop(sender, p.Nonce)
		s.nonces.Resync(sender)
		s.risk.RecordError(ctx, "settlement", err.Error())
		return true
	}

	included := mined > p.Nonce
	var out outcome
	if included {
		out, err = s.realize(rctx, p)
		switch {
		case apperror.GetCode(err) == apperror.CodeBlockNotFound:
			// The nonce went to another transaction.
			included = false
		case err != nil:
			if head < p.Submission.TargetBlock+s.config.MaxWait {
				return false
			}
			s.logger.Warn(ctx, "bundle included but not valued, booking estimate",
				"opportunity_id", p.Opportunity.ID, "error", err)
			s.risk.RecordError(ctx, "settlement", err.Error())
			out = outcome{success: true, profit: p.Expected}
		}
	}
	s.recordSimulation(p, &included)

	if !included {
		s.nonces.Drop(sender, p.Nonce)
		s.risk.RecordResult(ctx, false, decimal.Zero)
		s.logger.Info(ctx, "bundle missed target block",
			"opportunity_id", p.Opportunity.ID,
			"relay", p.Submission.Relay,
			"target_block", p.Submission.TargetBlock)
		return true
	}

	s.nonces.Confirm(sender, p.Nonce)
	s.risk.RecordResult(ctx, out.success, out.profit)
	if out.success {
		s.logger.Info(ctx, "bundle included",
			"opportunity_id", p.Opportunity.ID,
			"relay", p.Submission.Relay,
			"block", out.block,
			"profit", out.profit.StringFixed(2),
			"expected", p.Expected.StringFixed(2),
			"gas_cost", out.fee.StringFixed(2))
	} else {
		s.logger.Warn(ctx, "bundle included but reverted",
			"opportunity_id", p.Opportunity.ID,
			"relay", p.Submission.Relay,
			"block", out.block,
			"loss", out.profit.Neg().StringFixed(2))
	}
	return true
}

// realize reads the receipts of an included bundle and prices them.
func (s *Settler) realize(ctx context.Context, p Pending) (outcome, error) {
	bundle := p.Opportunity.Bundle()
	if bundle == nil {
		return outcome{success: true, profit: p.Expected}, nil
	}

	feeWei := new(big.Int)
	reverted := false
	var block uint64
	for _, hash := range bundle.TxHashes() {
		rcpt, err := s.reader.Receipt(ctx, hash)
		if err != nil {
			return outcome{}, err
		}
		feeWei.Add(feeWei, rcpt.FeeWei())
		reverted = reverted || rcpt.Reverted
		block = rcpt.BlockNumber
	}

	native, err := s.nativePrice(ctx)
	if err != nil {
		return outcome{}, err
	}
	fee := weiToUSD(feeWei, native)

	if !reverted {
		return outcome{
			success: true,
			profit:  p.Expected.Add(p.GasEstimate).Sub(fee),
			fee:     fee,
			block:   block,
		}, nil
	}

	loss := fee
	if drop, ok := s.balanceDrop(ctx, p, block); ok {
		if usd := weiToUSD(drop, native); usd.GreaterThan(loss) {
			loss = usd
		}
	}
	return outcome{profit: loss.Neg(), fee: fee, block: block}, nil
}

// balanceDrop returns how much native balance the sender lost across
// block. A read failure or a gain reports false.
func (s *Settler) balanceDrop(ctx context.Context, p Pending, block uint64) (*big.Int, bool) {
	if block == 0 {
		return nil, false
	}
	sender := p.Opportunity.Sender
	before, err := s.reader.BalanceAt(ctx, sender, block-1)
	if err != nil {
		s.logger.Debug(ctx, "balance read failed", "block", block-1, "error", err)
		return nil, false
	}
	after, err := s.reader.BalanceAt(ctx, sender, block)
	if err != nil {
		s.logger.Debug(ctx, "balance read failed", "block", block, "error", err)
		return nil, false
	}
	drop := new(big.Int).Sub(before, after)
	if drop.Sign() <= 0 {
		return nil, false
	}
	return drop, true
}

// nativePrice quotes the gas token, falling back to the last value seen.
func (s *Settler) nativePrice(ctx context.Context) (decimal.Decimal, error) {
	var err error
	if s.prices != nil {
		q, perr := s.prices.Price(ctx, s.config.NativeSymbol)
		err = perr
		if err == nil && q.Value.IsPositive() {
			s.mu.Lock()
			s.lastNative = q.Value
			s.mu.Unlock()
			return q.Value, nil
		}
	}

	s.mu.Lock()
	last := s.lastNative
	s.mu.Unlock()
	if last.IsPositive() {
		return last, nil
	}
	return decimal.Zero, fmt.Errorf("%s price unavailable: %v", s.config.NativeSymbol, err)
}

func weiToUSD(wei *big.Int, native decimal.Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther).Mul(native)
}

func (s *Settler) recordSimulation(p Pending, actual *bool) {
	if s.sims == nil || p.Opportunity.Simulation == nil {
		return
	}
	s.sims.Record(p.Opportunity.Simulation.Success, actual)
}
