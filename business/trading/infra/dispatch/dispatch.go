// Package dispatch submits approved opportunities.
package dispatch

import (
	"context"
	"time"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
)

// Submitter sends a bundle to the relays.
type Submitter interface {
	Submit(ctx context.Context, bundle *chainDomain.Bundle) (*chainDomain.Submission, error)
}

// Relay dispatches through the bundle relays.
type Relay struct {
	submitter Submitter
	timeout   time.Duration
}

// NewRelay creates a relay dispatcher. timeout bounds a whole submission
// including retries.
func NewRelay(submitter Submitter, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{submitter: submitter, timeout: timeout}
}

// Dispatch submits the opportunity bundle.
func (r *Relay) Dispatch(ctx context.Context, opp domain.Opportunity) (*chainDomain.Submission, error) {
	bundle := opp.Bundle()
	if bundle == nil {
		return nil, apperror.New(apperror.CodeBundleInvalid, apperror.WithContext("opportunity has no transactions"))
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sub, err := r.submitter.Submit(ctx, bundle)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeDispatchFailed, opp.ID)
	}
	return sub, nil
}

// DryRun reports false.
func (r *Relay) DryRun() bool { return false }

// Paper accepts every opportunity without sending anything.
type Paper struct {
	now func() time.Time
}

// NewPaper creates a dry-run dispatcher.
func NewPaper() *Paper {
	return &Paper{now: time.Now}
}

// Dispatch records a synthetic submission.
func (p *Paper) Dispatch(_ context.Context, opp domain.Opportunity) (*chainDomain.Submission, error) {
	return &chainDomain.Submission{
		Relay:       "dry-run",
		BundleHash:  opp.PayloadHash(),
		TargetBlock: opp.TargetBlock,
		SubmittedAt: p.now(),
	}, nil
}

// DryRun reports true.
func (p *Paper) DryRun() bool { return true }
