// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/flashguard/business/chain/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
	ChainClient  = di.NewToken[app.ChainClient]("chain.ChainClient")
	Relays       = di.NewToken[[]app.BundleRelay]("chain.Relays")
)

// Private dependency tokens - internal to chain module
var (
	HeadSubscriber = di.NewToken[app.HeadSubscriber]("chain:headSubscriber")
)

func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetChainClient(c di.ServiceRegistry) app.ChainClient {
	return di.GetToken(c, ChainClient)
}

func GetRelays(c di.ServiceRegistry) []app.BundleRelay {
	return di.GetToken(c, Relays)
}

func GetHeadSubscriber(c di.ServiceRegistry) app.HeadSubscriber {
	return di.GetToken(c, HeadSubscriber)
}
