// Package di contains dependency injection tokens for the safety context.
package di

import (
	"github.com/fd1az/flashguard/business/safety/app"
	"github.com/fd1az/flashguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gate        = di.NewToken[*app.Gate]("safety.Gate")
	Consensus   = di.NewToken[*app.ConsensusCheck]("safety.Consensus")
	Builder     = di.NewToken[*app.BuilderCheck]("safety.Builder")
	Transaction = di.NewToken[*app.TransactionCheck]("safety.Transaction")
	Simulation  = di.NewToken[*app.SimulationCheck]("safety.Simulation")
)

// Private dependency tokens - internal to safety module
var (
	Oracle   = di.NewToken[*app.OracleCheck]("safety:oracle")
	Network  = di.NewToken[*app.NetworkCheck]("safety:network")
	Strategy = di.NewToken[*app.StrategyCheck]("safety:strategy")
)

func GetGate(c di.ServiceRegistry) *app.Gate {
	return di.GetToken(c, Gate)
}

func GetConsensus(c di.ServiceRegistry) *app.ConsensusCheck {
	return di.GetToken(c, Consensus)
}

func GetBuilder(c di.ServiceRegistry) *app.BuilderCheck {
	return di.GetToken(c, Builder)
}

func GetTransaction(c di.ServiceRegistry) *app.TransactionCheck {
	return di.GetToken(c, Transaction)
}

func GetSimulation(c di.ServiceRegistry) *app.SimulationCheck {
	return di.GetToken(c, Simulation)
}

func GetOracle(c di.ServiceRegistry) *app.OracleCheck {
	return di.GetToken(c, Oracle)
}

func GetNetwork(c di.ServiceRegistry) *app.NetworkCheck {
	return di.GetToken(c, Network)
}

func GetStrategy(c di.ServiceRegistry) *app.StrategyCheck {
	return di.GetToken(c, Strategy)
}
