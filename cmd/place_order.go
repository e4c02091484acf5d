package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var placeOrderCmd = &cobra.Command{
	Use:   "place-order <ticker> <yes|no> <price> <quantity>",
	Short: "Place a limit order on a running exchange",
	Long: `Places a limit order as the user identified by MERCATUS_USER_ID.
Price is in cents (1-99) and quantity is a number of contracts.`,
	Args: cobra.ExactArgs(4),
	RunE: runPlaceOrder,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(placeOrderCmd)
}

func runPlaceOrder(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var price int
	var quantity int64
	_, err := fmt.Sscanf(args[2], "%d", &price)
	if err != nil {
		return fmt.Errorf("invalid price %q", args[2])
	}
	_, err = fmt.Sscanf(args[3], "%d", &quantity)
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[3])
	}

	body := map[string]any{
		"market_ticker": args[0],
		"side":          args[1],
		"price":         price,
		"quantity":      quantity,
	}

	var result struct {
		Message string `json:"message"`
	}
	client := newAPIClient()
	err = client.do(ctx, http.MethodPost, "/api/orders", body, &result)
	if err != nil {
		return err
	}

	fmt.Println(result.Message)
	return nil
}
