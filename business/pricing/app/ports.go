// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/flashguard/business/pricing/domain"
)

// PriceSource returns the current USD price of a token symbol.
type PriceSource interface {
	Price(ctx context.Context, token string) (*domain.Quote, error)
}

// NamedSource is a PriceSource that can identify itself.
type NamedSource interface {
	PriceSource
	Name() string
}
