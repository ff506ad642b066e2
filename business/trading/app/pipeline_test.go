package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	riskApp "github.com/fd1az/flashguard/business/risk/app"
	safetyDomain "github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
)

func TestPipeline_ApprovesAndDispatches(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	opp := opportunity()
	f.dispatcher.On("Dispatch", mock.Anything, opp).Return(submission(101), nil).Once()

	d := f.pipeline.Evaluate(context.Background(), opp)

	require.True(t, d.Approved, d.Reasons)
	assert.Equal(t, domain.StageDispatch, d.Stage)
	assert.Equal(t, "flashbots", d.Relay)
	assert.True(t, d.NetProfit.Equal(decimal.NewFromInt(975)))
	assert.Equal(t, opp.ID, d.OpportunityID)

	// slot released, nonce claimed, bundle awaiting its block
	assert.Zero(t, f.risk.Snapshot().ActiveTrades)
	assert.Equal(t, 1, f.nonces.PendingCount())
	assert.Equal(t, 1, f.settler.PendingCount())

	// safety saw the nonce and payload it was about to send
	require.NotNil(t, f.safety.last.Nonce)
	assert.Equal(t, uint64(7), *f.safety.last.Nonce)
	assert.Equal(t, opp.PayloadHash(), f.safety.last.PayloadHash)
	assert.Equal(t, opp.Simulation, f.safety.last.Simulation)

	require.Len(t, f.journal.decisions, 1)
	f.dispatcher.AssertExpectations(t)
}

func TestPipeline_RiskRejectionShortCircuits(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	f.risk.EmergencyStop(context.Background(), "test")

	d := f.pipeline.Evaluate(context.Background(), opportunity())

	assert.False(t, d.Approved)
	assert.Equal(t, domain.StageRisk, d.Stage)
	assert.Equal(t, []string{riskApp.ReasonEmergencyStop}, d.Reasons)
	assert.Zero(t, f.verifier.calls)
	assert.Zero(t, f.safety.calls)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestPipeline_LoanAboveLimit(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), true)
	opp := opportunity()
	opp.Amount = decimal.NewFromInt(250000)

	d := f.pipeline.Evaluate(context.Background(), opp)
	assert.Equal(t, domain.StageRisk, d.Stage)
	assert.Equal(t, []string{riskApp.ReasonLoanLimit}, d.Reasons)
}

func TestPipeline_ProfitRejection(t *testing.T) {
	verifier := &stubVerifier{result: profitDomain.Validation{
		Approved: false,
		Estimate: profitDomain.Estimate{Net: decimal.NewFromInt(450)},
		Reasons:  []string{"Net profit $450.00 below threshold $500.00"},
	}}
	f := newFixture(t, verifier, safe(), false)

	d := f.pipeline.Evaluate(context.Background(), opportunity())

	assert.False(t, d.Approved)
	assert.Equal(t, domain.StageProfit, d.Stage)
	assert.Contains(t, d.Reasons[0], "below threshold")
	assert.Zero(t, f.safety.calls)
	assert.Zero(t, f.risk.Snapshot().ActiveTrades)
}

func TestPipeline_SafetyRejectionLeavesRiskCounters(t *testing.T) {
	safety := &stubSafety{report: safetyDomain.Report{
		Level:  safetyDomain.LevelReject,
		Issues: []string{"REORG DETECTED: block 100 replaced"},
	}}
	f := newFixture(t, approve("975"), safety, false)

	d := f.pipeline.Evaluate(context.Background(), opportunity())

	assert.False(t, d.Approved)
	assert.Equal(t, domain.StageSafety, d.Stage)
	assert.Equal(t, safetyDomain.LevelReject, d.SafetyLevel)
	snap := f.risk.Snapshot()
	assert.Zero(t, snap.ActiveTrades)
	assert.Zero(t, snap.TotalTrades)
	assert.Zero(t, snap.ErrorCount)
	assert.Zero(t, f.nonces.PendingCount())
}

func TestPipeline_WarningStillDispatches(t *testing.T) {
	safety := &stubSafety{report: safetyDomain.Report{
		Level:    safetyDomain.LevelWarning,
		Warnings: []string{"GAS WAR: 140.00 gwei"},
	}}
	f := newFixture(t, approve("975"), safety, true)
	opp := opportunity()
	f.dispatcher.On("Dispatch", mock.Anything, opp).Return(submission(101), nil)

	d := f.pipeline.Evaluate(context.Background(), opp)
	assert.True(t, d.Approved)
	assert.Equal(t, []string{"GAS WAR: 140.00 gwei"}, d.Warnings)
}

func TestPipeline_DispatchFailureReleasesNonceAndCountsError(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	opp := opportunity()
	f.dispatcher.On("Dispatch", mock.Anything, opp).
		Return(nil, apperror.New(apperror.CodeRelayExhausted, apperror.WithContext("all relays failed")))

	d := f.pipeline.Evaluate(context.Background(), opp)

	assert.False(t, d.Approved)
	assert.Equal(t, domain.StageDispatch, d.Stage)
	assert.Contains(t, d.Reasons[0], "all relays failed")
	assert.Zero(t, f.nonces.PendingCount())
	assert.Equal(t, 1, f.risk.Snapshot().ErrorCount)
	assert.Zero(t, f.settler.PendingCount())
}

func TestPipeline_AllocatesPastPendingNonce(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(submission(101), nil)

	other := opportunity()
	other.Txs[0] = []byte{0x99}
	first := f.pipeline.Evaluate(context.Background(), other)
	require.True(t, first.Approved)

	opp := opportunity()
	err := f.nonces.Track(sender, 7, opp.PayloadHash())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNonceConflict, apperror.GetCode(err))

	second := f.pipeline.Evaluate(context.Background(), opp)
	require.True(t, second.Approved)
	assert.Equal(t, uint64(8), *f.safety.last.Nonce)
}

func TestPipeline_NonceRaceRejectsAtDispatch(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	f.safety.onCheck = func(sc *safetyDomain.Context) {
		// another worker claims the same nonce after the check
		require.NoError(t, f.nonces.Track(sc.Sender, *sc.Nonce, common.HexToHash("0xdead")))
	}

	d := f.pipeline.Evaluate(context.Background(), opportunity())

	assert.False(t, d.Approved)
	assert.Equal(t, domain.StageDispatch, d.Stage)
	assert.Contains(t, d.Reasons[0], "NONCE CONFLICT")
	assert.Zero(t, f.risk.Snapshot().ErrorCount)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestPipeline_RealModeNeedsTransactions(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	opp := opportunity()
	opp.Txs = nil

	d := f.pipeline.Evaluate(context.Background(), opp)
	assert.Equal(t, domain.StageIntake, d.Stage)
	assert.Zero(t, f.verifier.calls)
}

func TestPipeline_InvalidOpportunity(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), true)
	opp := opportunity()
	opp.Amount = decimal.Zero

	d := f.pipeline.Evaluate(context.Background(), opp)
	assert.Equal(t, domain.StageIntake, d.Stage)
	require.Len(t, f.journal.decisions, 1)
}

func TestPipeline_CancelledBeforeDispatch(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := f.pipeline.Evaluate(ctx, opportunity())

	assert.False(t, d.Approved)
	assert.Zero(t, f.risk.Snapshot().ActiveTrades)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestPipeline_NonceLookupFailure(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), false)
	f.chain.set(0, errors.New("rpc down"))

	d := f.pipeline.Evaluate(context.Background(), opportunity())
	assert.Equal(t, domain.StageSafety, d.Stage)
	assert.Contains(t, d.Reasons[0], "NONCE LOOKUP FAILED")
	assert.Zero(t, f.safety.calls)
}

func TestPipeline_EachStageRunsOncePerEvaluation(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), true)
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(submission(101), nil)

	for i := 0; i < 3; i++ {
		f.pipeline.Evaluate(context.Background(), opportunity())
	}
	assert.Equal(t, 3, f.verifier.calls)
	assert.Equal(t, 3, f.safety.calls)
	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", 3)
}

func TestPipeline_UsesMarketGas(t *testing.T) {
	f := newFixture(t, approve("975"), safe(), true)
	f.pipeline.gas = gasOracle{price: chainDomain.NewGasPrice(gweiWei(30), gweiWei(2))}
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(submission(101), nil)

	f.pipeline.Evaluate(context.Background(), opportunity())

	require.NotNil(t, f.safety.last.MarketGasPrice)
	assert.Equal(t, gweiWei(32), f.safety.last.MarketGasPrice)
	assert.Equal(t, gweiWei(32), f.safety.last.OwnGasPrice)
}
