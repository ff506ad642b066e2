// Package pricing implements the pricing bounded context: exchange and
// on-chain price sources behind a cached PriceSource.
package pricing

import (
	"context"
	"time"

	chainDI "github.com/fd1az/flashguard/business/chain/di"
	"github.com/fd1az/flashguard/business/pricing/app"
	pricingDI "github.com/fd1az/flashguard/business/pricing/di"
	"github.com/fd1az/flashguard/business/pricing/infra/binance"
	"github.com/fd1az/flashguard/business/pricing/infra/chainlink"
	"github.com/fd1az/flashguard/internal/asset"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.ExchangeSource, func(sr di.ServiceRegistry) app.NamedSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		provider, err := binance.NewProvider(binance.ProviderConfig{
			WebSocketURL:   cfg.Pricing.ExchangeWebSocketURL,
			HTTPURL:        cfg.Pricing.ExchangeHTTPURL,
			StaleTimeout:   cfg.Pricing.StaleTimeout,
			FetchTimeout:   cfg.Pricing.FetchTimeout,
			EnableFallback: cfg.Pricing.ExchangeHTTPURL != "",
		}, registry, log)
		if err != nil {
			panic("failed to create binance provider: " + err.Error())
		}
		return provider
	})

	di.RegisterToken(c, pricingDI.FeedSource, func(sr di.ServiceRegistry) app.NamedSource {
		registry := sr.Get("assetRegistry").(*asset.Registry)
		feed, err := chainlink.NewFeed(chainDI.GetChainClient(sr), registry)
		if err != nil {
			panic("failed to create chainlink feed: " + err.Error())
		}
		return feed
	})

	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		svc, err := app.NewPricingService(app.ServiceConfig{
			FetchTimeout:       cfg.Pricing.FetchTimeout,
			CacheTTL:           cfg.Pricing.CacheTTL,
			FallbackConfidence: cfg.Pricing.FallbackConfidence,
		}, registry, log, pricingDI.GetExchangeSource(sr), pricingDI.GetFeedSource(sr))
		if err != nil {
			panic("failed to create pricing service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, pricingDI.PriceSource, func(sr di.ServiceRegistry) app.PriceSource {
		return pricingDI.GetPricingService(sr)
	})

	return nil
}

// Startup connects the exchange stream. A failed connect is retried in the
// background; the REST fallback serves prices meanwhile.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	mono.OnClose(pricingDI.GetPricingService(sr))

	exchange := pricingDI.GetExchangeSource(sr)
	if closer, ok := exchange.(interface{ Close() error }); ok {
		mono.OnClose(closer)
	}

	connector, ok := exchange.(interface{ Connect(context.Context) error })
	if !ok {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := connector.Connect(connectCtx)
	cancel()
	if err == nil {
		log.Info(ctx, "pricing module started")
		return nil
	}

	log.Warn(ctx, "exchange stream connection failed, will retry in background", "error", err)
	mono.Go("pricing.exchange-connect", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
				if err := connector.Connect(ctx); err != nil {
					log.Warn(ctx, "exchange stream retry failed", "error", err)
					continue
				}
				log.Info(ctx, "exchange stream connected")
				return nil
			}
		}
	})
	return nil
}
