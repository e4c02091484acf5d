package cmd

import (
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/app"
	"github.com/mercatus-exchange/mercatus/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the exchange server",
	Long: `Starts the Mercatus exchange server, which will:
1. Open the ledger (in-memory or PostgreSQL, per LEDGER_MODE)
2. Serve the trading API and live price feed over HTTP
3. Optionally generate synthetic bot activity (SIM_ENABLED)

Use --seed to provision demo users and markets on startup.`,
	RunE: runServer,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("seed", false, "Seed demo users and markets on startup")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Get flags
	seed, _ := cmd.Flags().GetBool("seed")

	// Create app with options
	opts := &app.Options{
		Seed: seed,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
