// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/flashguard/business/risk/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gate = di.NewToken[*app.Gate]("risk.Gate")
)

func GetGate(c di.ServiceRegistry) *app.Gate {
	return di.GetToken(c, Gate)
}
