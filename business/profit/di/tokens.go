// Package di contains dependency injection tokens for the profit context.
package di

import (
	"github.com/fd1az/flashguard/business/profit/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Verifier = di.NewToken[*app.Verifier]("profit.Verifier")
	Filter   = di.NewToken[*app.OpportunityFilter]("profit.OpportunityFilter")
)

func GetVerifier(c di.ServiceRegistry) *app.Verifier {
	return di.GetToken(c, Verifier)
}

func GetFilter(c di.ServiceRegistry) *app.OpportunityFilter {
	return di.GetToken(c, Filter)
}
