// Package di contains dependency injection tokens for the trading context.
package di

import (
	"github.com/fd1az/flashguard/business/trading/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Loop = di.NewToken[*app.Loop]("trading.Loop")
)

// Private dependency tokens - internal to trading module
var (
	Pipeline        = di.NewToken[*app.Pipeline]("trading:pipeline")
	Settler         = di.NewToken[*app.Settler]("trading:settler")
	Journal         = di.NewToken[app.Journal]("trading:journal")
	Dispatcher      = di.NewToken[app.Dispatcher]("trading:dispatcher")
	RecoveryHandler = di.NewToken[*app.RecoveryHandler]("trading:recoveryHandler")
)

func GetLoop(c di.ServiceRegistry) *app.Loop {
	return di.GetToken(c, Loop)
}

func GetPipeline(c di.ServiceRegistry) *app.Pipeline {
	return di.GetToken(c, Pipeline)
}

func GetSettler(c di.ServiceRegistry) *app.Settler {
	return di.GetToken(c, Settler)
}

func GetJournal(c di.ServiceRegistry) app.Journal {
	return di.GetToken(c, Journal)
}

func GetDispatcher(c di.ServiceRegistry) app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}

func GetRecoveryHandler(c di.ServiceRegistry) *app.RecoveryHandler {
	return di.GetToken(c, RecoveryHandler)
}
