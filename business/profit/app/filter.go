package app

import (
	"sort"

	"github.com/fd1az/flashguard/business/profit/domain"
)

// OpportunityFilter keeps the most profitable approved validations.
type OpportunityFilter struct {
	top int
}

// NewOpportunityFilter creates a filter keeping at most top entries.
func NewOpportunityFilter(top int) *OpportunityFilter {
	if top < 1 {
		top = 1
	}
	return &OpportunityFilter{top: top}
}

// Rank returns approved validations sorted by net profit, highest first,
// truncated to the filter size. Ties keep input order.
func (f *OpportunityFilter) Rank(vals []domain.Validation) []domain.Validation {
	out := make([]domain.Validation, 0, len(vals))
	for _, v := range vals {
		if v.Approved {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Estimate.Net.GreaterThan(out[j].Estimate.Net)
	})
	if len(out) > f.top {
		out = out[:f.top]
	}
	return out
}
