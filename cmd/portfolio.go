package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show balance and positions for MERCATUS_USER_ID",
	RunE:  runPortfolio,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var portfolio struct {
		Balance   int64                 `json:"balance"`
		Positions []*types.PositionView `json:"positions"`
	}
	client := newAPIClient()
	err := client.do(ctx, http.MethodGet, "/api/portfolio", nil, &portfolio)
	if err != nil {
		return err
	}

	fmt.Printf("Balance: $%.2f\n\n", float64(portfolio.Balance)/100)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSIDE\tQTY\tAVG\tMARK\tVALUE\tP/L")
	for _, p := range portfolio.Positions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d¢\t%d¢\t$%.2f\t$%.2f\n",
			p.MarketTicker, p.Side, p.Quantity, p.AvgPrice, p.MarkPrice,
			float64(p.CurrentValue)/100, float64(p.UnrealizedPL)/100)
	}
	return w.Flush()
}
