package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "lmsr-marketmaker",
	Short: "LMSR-based maker for Polymarket binary markets",
	Long: `LMSR-based maker for Polymarket binary markets.

The bot subscribes to configured markets' order books via WebSocket,
smooths each book's mid price into a fair-value estimate, and posts
maker-only orders whenever the edge of that estimate over the best
quoted price clears the configured minimum and the risk manager
is armed. Position sizing follows fractional Kelly; a circuit breaker
trips on a run of consecutive losses and cools down before resuming.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}
