package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Paper trading engine for spot crypto and FX",
	Long: `Trader runs an adaptive EMA strategy against live or simulated quotes and
fills every approved order on a local paper ledger.

It provides tools for:
  - Running the trading loop against sim, Binance or OANDA quotes
  - Inspecting persisted positions and the trade journal
  - Generating and validating configuration files`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}
