// Package di contains dependency injection tokens for the reliability context.
package di

import (
	"github.com/fd1az/flashguard/business/reliability/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Supervisor = di.NewToken[*app.Supervisor]("reliability.Supervisor")
)

// Private dependency tokens - internal to reliability module
var (
	Sampler  = di.NewToken[app.ResourceSampler]("reliability:sampler")
	Monitor  = di.NewToken[*app.Monitor]("reliability:monitor")
	Recovery = di.NewToken[*app.AutoRecovery]("reliability:recovery")
)

func GetSupervisor(c di.ServiceRegistry) *app.Supervisor {
	return di.GetToken(c, Supervisor)
}

func GetSampler(c di.ServiceRegistry) app.ResourceSampler {
	return di.GetToken(c, Sampler)
}

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}

func GetRecovery(c di.ServiceRegistry) *app.AutoRecovery {
	return di.GetToken(c, Recovery)
}
