package app

import (
	"context"

	chainDomain "github.com/fd1az/flashguard/business/chain/domain"
	pricingDomain "github.com/fd1az/flashguard/business/pricing/domain"
)

// PriceSource quotes a token in USD.
type PriceSource interface {
	Price(ctx context.Context, token string) (*pricingDomain.Quote, error)
}

// GasOracle reports the current network gas price.
type GasOracle interface {
	GasPrice(ctx context.Context) (*chainDomain.GasPrice, error)
}
