package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List markets on a running exchange",
	Long:  `Fetches and displays markets from a running exchange server.`,
	RunE:  runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
	listMarketsCmd.Flags().StringP("status", "s", "", "Filter by status: open, closed, settled")
	listMarketsCmd.Flags().StringP("category", "c", "", "Filter by category")
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")

	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if category != "" {
		query.Set("category", category)
	}

	path := "/api/markets"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var markets []*types.MarketSummary
	client := newAPIClient()
	err := client.do(ctx, http.MethodGet, path, nil, &markets)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSTATUS\tYES\tNO\tVOLUME\tTITLE")
	for _, m := range markets {
		fmt.Fprintf(w, "%s\t%s\t%d¢\t%d¢\t%d\t%s\n",
			m.Ticker, m.Status, m.LastPrice, 100-m.LastPrice, m.Volume, m.Title)
	}
	return w.Flush()
}
