// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/flashguard/business/pricing/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceSource = di.NewToken[app.PriceSource]("pricing.PriceSource")
)

// Private dependency tokens - internal to pricing module
var (
	ExchangeSource = di.NewToken[app.NamedSource]("pricing:exchangeSource")
	FeedSource     = di.NewToken[app.NamedSource]("pricing:feedSource")
	PricingService = di.NewToken[*app.PricingService]("pricing:pricingService")
)

// Helper functions for type-safe access
func GetPriceSource(c di.ServiceRegistry) app.PriceSource {
	return di.GetToken(c, PriceSource)
}

func GetExchangeSource(c di.ServiceRegistry) app.NamedSource {
	return di.GetToken(c, ExchangeSource)
}

func GetFeedSource(c di.ServiceRegistry) app.NamedSource {
	return di.GetToken(c, FeedSource)
}

func GetPricingService(c di.ServiceRegistry) *app.PricingService {
	return di.GetToken(c, PricingService)
}
