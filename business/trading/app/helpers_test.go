package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	riskApp "github.com/fd1az/flashguard/business/risk/app"
	safetyApp "github.com/fd1az/flashguard/business/safety/app"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

var sender = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type stubVerifier struct {
	mu     sync.Mutex
	calls  int
	result profitDomain.Validation
}

func (s *stubVerifier) Verify(_ context.Context, p profitDomain.Params) profitDomain.Validation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	v := s.result
	v.OpportunityID = p.OpportunityID
	return v
}

func approve(net string) *stubVerifier {
	return &stubVerifier{result: profitDomain.Validation{
		Approved: true,
		Estimate: profitDomain.Estimate{Net: decimal.RequireFromString(net), Confidence: 0.9},
	}}
}

type stubSafety struct {
	mu      sync.Mutex
	calls   int
	last    *safetyDomain.Context
	report  safetyDomain.Report
	onCheck func(*safetyDomain.Context)
}

func (s *stubSafety) Check(_ context.Context, sc *safetyDomain.Context) safetyDomain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = sc
	if s.onCheck != nil {
		s.onCheck(sc)
	}
	return s.report
}

func safe() *stubSafety {
	return &stubSafety{report: safetyDomain.Report{Level: safetyDomain.LevelSafe}}
}

type mockDispatcher struct {
	mock.Mock
	dry bool
}

func (m *mockDispatcher) Dispatch(ctx context.Context, opp domain.Opportunity) (*chainDomain.Submission, error) {
	args := m.Called(ctx, opp)
	sub, _ := args.Get(0).(*chainDomain.Submission)
	return sub, args.Error(1)
}

func (m *mockDispatcher) DryRun() bool { return m.dry }

type memJournal struct {
	mu        sync.Mutex
	decisions []domain.Decision
}

func (j *memJournal) Record(_ context.Context, d domain.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decisions = append(j.decisions, d)
	return nil
}

func (j *memJournal) Close() error { return nil }

type fakeChain struct {
	mu       sync.Mutex
	n        uint64
	err      error
	receipts map[common.Hash]*chainDomain.Receipt
	balances map[uint64]*big.Int
}

func newFakeChain(n uint64) *fakeChain {
	return &fakeChain{
		n:        n,
		receipts: make(map[common.Hash]*chainDomain.Receipt),
		balances: make(map[uint64]*big.Int),
	}
}

func (c *fakeChain) Nonce(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, c.err
}

func (c *fakeChain) Receipt(_ context.Context, tx common.Hash) (*chainDomain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[tx]
	if !ok {
		return nil, apperror.New(apperror.CodeBlockNotFound, apperror.WithContext("receipt"))
	}
	return r, nil
}

func (c *fakeChain) BalanceAt(_ context.Context, _ common.Address, block uint64) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[block]
	if !ok {
		return nil, errors.New("missing trie node")
	}
	return b, nil
}

func (c *fakeChain) set(n uint64, err error) {
	c.mu.Lock()
	c.n, c.err = n, err
	c.mu.Unlock()
}

// mine records a receipt for every transaction of opp at block.
func (c *fakeChain) mine(opp domain.Opportunity, block, gasUsed uint64, gasPrice *big.Int, reverted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range opp.Bundle().TxHashes() {
		c.receipts[h] = &chainDomain.Receipt{
			TxHash:            h,
			BlockNumber:       block,
			Reverted:          reverted,
			GasUsed:           gasUsed,
			EffectiveGasPrice: gasPrice,
		}
	}
}

func (c *fakeChain) setBalance(block uint64, wei *big.Int) {
	c.mu.Lock()
	c.balances[block] = wei
	c.mu.Unlock()
}

type nativeFeed struct {
	mu    sync.Mutex
	value decimal.Decimal
	err   error
}

func (f *nativeFeed) Price(_ context.Context, token string) (*pricingDomain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &pricingDomain.Quote{Token: token, Value: f.value, Confidence: 1, ObservedAt: time.Now()}, nil
}

type recordedSim struct {
	simulated bool
	actual    *bool
}

type simRecorder struct {
	mu      sync.Mutex
	records []recordedSim
}

func (s *simRecorder) Record(simulated bool, actual *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordedSim{simulated, actual})
}

type fixture struct {
	risk       *riskApp.Gate
	nonces     *safetyApp.PendingRegistry
	chain      *fakeChain
	prices     *nativeFeed
	verifier   *stubVerifier
	safety     *stubSafety
	dispatcher *mockDispatcher
	journal    *memJournal
	sims       *simRecorder
	settler    *Settler
	pipeline   *Pipeline
}

func newFixture(t *testing.T, verifier *stubVerifier, safety *stubSafety, dry bool) *fixture {
	t.Helper()
	risk, err := riskApp.NewGate(riskApp.DefaultConfig(), logger.NewNop())
	require.NoError(t, err)

	f := &fixture{
		risk:       risk,
		chain:      newFakeChain(7),
		prices:     &nativeFeed{value: decimal.NewFromInt(2000)},
		verifier:   verifier,
		safety:     safety,
		dispatcher: &mockDispatcher{dry: dry},
		journal:    &memJournal{},
		sims:       &simRecorder{},
	}
	f.nonces = safetyApp.NewPendingRegistry(f.chain)
	f.settler = NewSettler(DefaultSettlerConfig(), risk, f.nonces, f.sims, f.chain, f.prices, logger.NewNop())

	f.pipeline, err = NewPipeline(DefaultPipelineConfig(), PipelineDeps{
		Risk:       risk,
		Profit:     verifier,
		Safety:     safety,
		Nonces:     f.nonces,
		Dispatcher: f.dispatcher,
		Settler:    f.settler,
		Journal:    f.journal,
	}, logger.NewNop())
	require.NoError(t, err)
	return f
}

func opportunity() domain.Opportunity {
	return domain.NewOpportunity(domain.Opportunity{
		Path:        []string{"WETH", "USDC"},
		Amount:      decimal.NewFromInt(100000),
		BuyPrice:    decimal.NewFromInt(2000),
		SellPrice:   decimal.NewFromInt(2020),
		GasLimit:    400000,
		Sender:      sender,
		TargetBlock: 101,
		Txs:         []hexutil.Bytes{{0x02, 0xf8}},
		Simulation:  &safetyDomain.SimulationOutcome{Success: true, GasUsed: 300000, GasLimit: 400000},
	}, time.Now())
}

func submission(target uint64) *chainDomain.Submission {
	return &chainDomain.Submission{Relay: "flashbots", BundleHash: common.HexToHash("0xb0"), TargetBlock: target, Attempts: 1}
}

type gasOracle struct {
	price *chainDomain.GasPrice
	err   error
}

func (g gasOracle) GasPrice(context.Context) (*chainDomain.GasPrice, error) { return g.price, g.err }

func gweiWei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}
