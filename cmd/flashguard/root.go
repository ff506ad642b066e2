package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flashguard",
	Short: "Trade safety and execution gate for flash-loan arbitrage",
	Long: `flashguard takes candidate flash-loan opportunities through a fixed
sequence of risk limits, profit verification and safety checks, dispatches
the approved bundles and halts trading when the host or its dependencies
degrade past recovery.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
}
