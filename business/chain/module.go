// Package chain implements the chain access bounded context: node RPC, head
// subscription and bundle relays.
package chain

import (
	"context"
	"fmt"

	"github.com/fd1az/flashguard/business/chain/app"
	chainDI "github.com/fd1az/flashguard/business/chain/di"
	"github.com/fd1az/flashguard/business/chain/infra/ethereum"
	"github.com/fd1az/flashguard/business/chain/infra/relay"
	"github.com/fd1az/flashguard/internal/config"
	"github.com/fd1az/flashguard/internal/di"
	"github.com/fd1az/flashguard/internal/logger"
	"github.com/fd1az/flashguard/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.ChainClient, func(sr di.ServiceRegistry) app.ChainClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		clientCfg := ethereum.DefaultClientConfig(cfg.Ethereum.HTTPURL)
		if cfg.Ethereum.RequestTimeout > 0 {
			clientCfg.RequestTimeout = cfg.Ethereum.RequestTimeout
		}
		if cfg.Ethereum.RequestsPerMin > 0 {
			clientCfg.RequestsPerMin = cfg.Ethereum.RequestsPerMin
		}
		client, err := ethereum.NewClient(clientCfg, log)
		if err != nil {
			panic("failed to create chain client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, chainDI.HeadSubscriber, func(sr di.ServiceRegistry) app.HeadSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := chainDI.GetChainClient(sr)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL)
		if cfg.Ethereum.PollInterval > 0 {
			subCfg.PollInterval = cfg.Ethereum.PollInterval
		}
		sub, err := ethereum.NewSubscriber(subCfg, client, log)
		if err != nil {
			panic("failed to create head subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, chainDI.Relays, func(sr di.ServiceRegistry) []app.BundleRelay {
		cfg := sr.Get("config").(*config.Config)
		relays, err := buildRelays(cfg)
		if err != nil {
			panic("failed to create relays: " + err.Error())
		}
		return relays
	})

	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewChainService(chainDI.GetChainClient(sr), chainDI.GetHeadSubscriber(sr), log)
	})

	return nil
}

// buildRelays creates one signed relay per URL. Without a signing key no
// relays are built and the builder check rejects every bundle.
func buildRelays(cfg *config.Config) ([]app.BundleRelay, error) {
	if cfg.Relays.SigningKey == "" {
		return nil, nil
	}
	key, err := relay.ParseKey(cfg.Relays.SigningKey)
	if err != nil {
		return nil, err
	}

	relays := make([]app.BundleRelay, 0, len(cfg.Relays.URLs))
	for i, url := range cfg.Relays.URLs {
		r, err := relay.New(relay.Config{
			Name:    fmt.Sprintf("relay-%d", i),
			URL:     url,
			Timeout: cfg.Relays.Timeout,
		}, key)
		if err != nil {
			return nil, err
		}
		relays = append(relays, r)
	}
	return relays, nil
}

// Startup connects the node client and starts head fan-out.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	client := chainDI.GetChainClient(sr)
	if connector, ok := client.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			return err
		}
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		mono.OnClose(closerFunc(closer.Close))
	}

	sub := chainDI.GetHeadSubscriber(sr)
	if closer, ok := sub.(interface{ Close() error }); ok {
		mono.OnClose(closerFunc(closer.Close))
	}

	svc := chainDI.GetChainService(sr)
	mono.Go("chain.heads", svc.Run)

	log.Info(ctx, "chain module started", "relays", len(chainDI.GetRelays(sr)))
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
