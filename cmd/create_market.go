package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var createMarketCmd = &cobra.Command{
	Use:   "create-market <ticker> <title>",
	Short: "Create a market on a running exchange",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreateMarket,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(createMarketCmd)
	createMarketCmd.Flags().StringP("category", "c", "general", "Market category")
	createMarketCmd.Flags().StringP("description", "d", "", "Resolution criteria")
	createMarketCmd.Flags().Int("days", 30, "Days until the settlement date")
}

func runCreateMarket(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	category, _ := cmd.Flags().GetString("category")
	description, _ := cmd.Flags().GetString("description")
	days, _ := cmd.Flags().GetInt("days")

	body := map[string]any{
		"ticker":          args[0],
		"title":           args[1],
		"category":        category,
		"description":     description,
		"settlement_date": time.Now().AddDate(0, 0, days).Format(time.RFC3339),
	}

	var market types.Market
	client := newAPIClient()
	err := client.do(ctx, http.MethodPost, "/api/markets", body, &market)
	if err != nil {
		return err
	}

	fmt.Printf("Created market %s (id %d): %s\n", market.Ticker, market.ID, market.Title)
	return nil
}
