// Package testutil provides shared fixtures and ledger wrappers for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/stretchr/testify/require"
)

// CreateTestMarket creates an open market with a unique ticker.
func CreateTestMarket(ticker string, title string) *types.Market {
	return &types.Market{
		Ticker:         ticker,
		Title:          title,
		Description:    "Test market: " + title,
		Category:       "general",
		Status:         types.MarketOpen,
		SettlementDate: time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
}

// CreateTestUser creates a user with the given balance in cents.
func CreateTestUser(email string, balance int64) *types.User {
	return &types.User{
		Email:   email,
		Balance: balance,
	}
}

// CreateTestOrder creates an open, unfilled order.
func CreateTestOrder(userID int64, marketID int64, side types.Side, price int, quantity int64) *types.Order {
	return &types.Order{
		UserID:   userID,
		MarketID: marketID,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Status:   types.OrderOpen,
	}
}

// SeedMarket inserts a market and fails the test on error.
func SeedMarket(t *testing.T, store ledger.Store, ticker string) *types.Market {
	t.Helper()
	market := CreateTestMarket(ticker, "Will "+ticker+" resolve YES?")
	require.NoError(t, store.CreateMarket(context.Background(), market))
	return market
}

// SeedUser inserts a user and fails the test on error.
func SeedUser(t *testing.T, store ledger.Store, email string, balance int64) *types.User {
	t.Helper()
	user := CreateTestUser(email, balance)
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// SeedOrder inserts an order and fails the test on error.
func SeedOrder(t *testing.T, store ledger.Store, userID, marketID int64, side types.Side, price int, quantity int64) *types.Order {
	t.Helper()
	order := CreateTestOrder(userID, marketID, side, price, quantity)
	require.NoError(t, store.CreateOrder(context.Background(), order))
	return order
}
