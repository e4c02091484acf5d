package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "mercatus",
	Short: "Binary prediction market exchange",
	Long: `Mercatus is a binary prediction market exchange. Users trade YES and NO
contracts on real-world events at prices between 1 and 99 cents. Matched
contracts always escrow exactly 100 cents per contract, and winning
positions redeem at 100 cents when a market resolves.

The run command starts the exchange server. The remaining commands are
thin clients that talk to a running server over its HTTP API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; the environment may be set directly.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
