package app

import (
	"context"
	"errors"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

const seedBalance = 100_000 // $1,000 in cents

// seed provisions demo users and markets. Existing records are left alone,
// so seeding is safe across restarts.
func (a *App) seed(ctx context.Context) error {
	users := []string{"alice@mercatus.local", "bob@mercatus.local"}
	for _, email := range users {
		err := a.store.CreateUser(ctx, &types.User{Email: email, Balance: seedBalance})
		if err != nil && !errors.Is(err, types.ErrEmailTaken) {
			return err
		}
	}

	markets := []*types.Market{
		{
			Ticker:      "BTC-100K-2026",
			Title:       "Will Bitcoin close above $100,000 on Dec 31, 2026?",
			Category:    "crypto",
			Description: "Resolves YES if BTC-USD closes above $100,000 on the settlement date.",
		},
		{
			Ticker:      "FED-CUT-SEP",
			Title:       "Will the Fed cut rates at the September meeting?",
			Category:    "economics",
			Description: "Resolves YES on any reduction of the federal funds target range.",
		},
		{
			Ticker:      "MARS-SAMPLE-2027",
			Title:       "Will a Mars sample return mission launch before 2028?",
			Category:    "science",
			Description: "Resolves YES if any agency launches a sample return mission by Dec 31, 2027.",
		},
	}

	for _, m := range markets {
		m.Status = types.MarketOpen
		m.SettlementDate = time.Now().Add(365 * 24 * time.Hour).Format(time.RFC3339)

		err := a.store.CreateMarket(ctx, m)
		if err != nil && !errors.Is(err, types.ErrTickerTaken) {
			return err
		}
	}

	a.logger.Info("seed-complete",
		zap.Int("users", len(users)),
		zap.Int("markets", len(markets)))

	return nil
}
