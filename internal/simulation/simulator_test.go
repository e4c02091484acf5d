package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/mercatus-exchange/mercatus/internal/book"
	"github.com/mercatus-exchange/mercatus/internal/circuitbreaker"
	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/internal/testutil"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSimulator(t *testing.T, store ledger.Store, maxQuantity int64) *Simulator {
	t.Helper()

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	eng := engine.New(&engine.Config{
		Store:   store,
		Books:   book.New(store),
		Breaker: breaker,
		Logger:  zap.NewNop(),
	})

	return New(&Config{
		Store:         store,
		Intake:        intake.New(store, eng, zap.NewNop()),
		Logger:        zap.NewNop(),
		Interval:      time.Second,
		TradeChance:   1,
		BotCount:      3,
		BotBalance:    1_000_000,
		MaxQuantity:   maxQuantity,
		MeanReversion: 0.05,
	})
}

func TestProvisionBotsReusesExistingUsers(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	first := newTestSimulator(t, store, 60)
	require.NoError(t, first.provisionBots(ctx))
	require.Len(t, first.bots, 3)

	// A second run against the same ledger picks up the same bot accounts.
	second := newTestSimulator(t, store, 60)
	require.NoError(t, second.provisionBots(ctx))
	assert.Equal(t, first.bots, second.bots)
}

func TestSimulateTradeCrossesBotOrders(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "SIM-CROSS")
	sim := newTestSimulator(t, store, 60)
	require.NoError(t, sim.provisionBots(ctx))

	sim.simulateTrade(ctx, market)

	// The maker/taker pair is priced to cross, so the pass commits a fill.
	price, traded, err := store.LastTradePrice(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, traded)
	assert.GreaterOrEqual(t, price, types.MinPrice)
	assert.LessOrEqual(t, price, types.MaxPrice)

	volume, trades, err := store.MarketVolume(ctx, market.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, volume, int64(tradeQuantityFloor))
	assert.GreaterOrEqual(t, trades, int64(1))
}

func TestSimulateTradeAppliesQuantityFloor(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "SIM-FLOOR")

	// MaxQuantity below the floor is raised to it rather than handed to the
	// RNG, where a non-positive bound panics.
	sim := newTestSimulator(t, store, 5)
	require.Equal(t, int64(tradeQuantityFloor), sim.maxQuantity)
	require.NoError(t, sim.provisionBots(ctx))

	require.NotPanics(t, func() {
		sim.simulateTrade(ctx, market)
	})

	volume, _, err := store.MarketVolume(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(tradeQuantityFloor), volume)
}
