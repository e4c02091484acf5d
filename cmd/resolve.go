package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var resolveCmd = &cobra.Command{
	Use:   "resolve <ticker> <yes|no>",
	Short: "Resolve a market and pay out winning positions",
	Long: `Resolves a market to the given outcome on a running exchange server.
Winning positions are credited 100 cents per contract, losing positions
expire worthless, and all resting orders on the market are cancelled.`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]string{
		"ticker":  args[0],
		"outcome": args[1],
	}

	var result map[string]string
	client := newAPIClient()
	err := client.do(ctx, http.MethodPost, "/api/admin/resolve", body, &result)
	if err != nil {
		return err
	}

	fmt.Printf("Market %s resolved %s\n", result["ticker"], result["outcome"])
	return nil
}
