// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind classifies where a price came from. Each kind has its own
// freshness bound.
type SourceKind string

const (
	KindSignedFeed SourceKind = "signed_feed" // e.g. Chainlink aggregator
	KindTWAP       SourceKind = "twap"
	KindExchange   SourceKind = "exchange"
)

// Quote is a USD price observation for one token.
type Quote struct {
	Token      string
	Value      decimal.Decimal
	Source     string
	Kind       SourceKind
	Confidence float64 // [0,1]
	ObservedAt time.Time
}

// Age returns how old the observation is at now.
func (q Quote) Age(now time.Time) time.Duration {
	if q.ObservedAt.IsZero() {
		return 0
	}
	return now.Sub(q.ObservedAt)
}

// Degrade returns a copy with confidence scaled by factor.
func (q Quote) Degrade(factor float64, source string) Quote {
	q.Confidence = clamp01(q.Confidence * factor)
	q.Source = source
	return q
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
