package engine

import (
	"context"
	"testing"
	"time"

	"github.com/mercatus-exchange/mercatus/internal/book"
	"github.com/mercatus-exchange/mercatus/internal/circuitbreaker"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/internal/testutil"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, store ledger.Store) *Engine {
	t.Helper()

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	return New(&Config{
		Store:   store,
		Books:   book.New(store),
		Breaker: breaker,
		Logger:  zap.NewNop(),
	})
}

func TestSubmitOrderNoRestingOrders(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-A")
	user := testutil.SeedUser(t, store, "a@test.local", 100_000)
	order := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 60, 10)

	result, err := eng.SubmitOrder(ctx, order)
	require.NoError(t, err)

	assert.Empty(t, result.Fills)
	assert.Equal(t, int64(0), result.Filled)
	assert.Equal(t, int64(10), result.Remaining)

	stored, err := store.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderOpen, stored.Status)
	assert.Equal(t, int64(0), stored.Filled)
}

func TestSubmitOrderExactMatch(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-B")
	noUser := testutil.SeedUser(t, store, "no@test.local", 100_000)
	yesUser := testutil.SeedUser(t, store, "yes@test.local", 100_000)

	testutil.SeedOrder(t, store, noUser.ID, market.ID, types.SideNo, 40, 10)
	incoming := testutil.SeedOrder(t, store, yesUser.ID, market.ID, types.SideYes, 65, 10)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	// The resting NO at 40 anchors the trade at a YES price of 60.
	require.Len(t, result.Fills, 1)
	assert.Equal(t, 60, result.Fills[0].Price)
	assert.Equal(t, int64(10), result.Fills[0].Quantity)
	assert.Equal(t, int64(10), result.Filled)
	assert.Equal(t, int64(0), result.Remaining)

	stored, err := store.Order(ctx, incoming.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, stored.Status)

	resting, err := store.Order(ctx, result.Fills[0].MatchedOrderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, resting.Status)
	assert.Equal(t, int64(10), resting.Filled)

	// Each contract escrows exactly 100 cents split across the two sides.
	yesAfter, err := store.User(ctx, yesUser.ID)
	require.NoError(t, err)
	noAfter, err := store.User(ctx, noUser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000-60*10), yesAfter.Balance)
	assert.Equal(t, int64(100_000-40*10), noAfter.Balance)

	yesPos, err := store.Position(ctx, yesUser.ID, market.ID, types.SideYes)
	require.NoError(t, err)
	assert.Equal(t, int64(10), yesPos.Quantity)
	assert.Equal(t, 60, yesPos.AvgPrice)

	noPos, err := store.Position(ctx, noUser.ID, market.ID, types.SideNo)
	require.NoError(t, err)
	assert.Equal(t, int64(10), noPos.Quantity)
	assert.Equal(t, 40, noPos.AvgPrice)
}

func TestSubmitOrderTimePriority(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-C")
	older := testutil.SeedUser(t, store, "older@test.local", 100_000)
	newer := testutil.SeedUser(t, store, "newer@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "taker@test.local", 100_000)

	olderOrder := testutil.SeedOrder(t, store, older.ID, market.ID, types.SideNo, 40, 5)
	newerOrder := testutil.SeedOrder(t, store, newer.ID, market.ID, types.SideNo, 40, 5)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideYes, 60, 7)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, olderOrder.ID, result.Fills[0].MatchedOrderID)
	assert.Equal(t, int64(5), result.Fills[0].Quantity)
	assert.Equal(t, newerOrder.ID, result.Fills[1].MatchedOrderID)
	assert.Equal(t, int64(2), result.Fills[1].Quantity)

	assert.Equal(t, int64(7), result.Filled)
	assert.Equal(t, int64(0), result.Remaining)

	stored, err := store.Order(ctx, incoming.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, stored.Status)

	second, err := store.Order(ctx, newerOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderPartial, second.Status)
	assert.Equal(t, int64(2), second.Filled)
}

func TestSubmitOrderNoSelfMatch(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-SELF")
	user := testutil.SeedUser(t, store, "self@test.local", 100_000)

	testutil.SeedOrder(t, store, user.ID, market.ID, types.SideNo, 40, 10)
	incoming := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 65, 10)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	assert.Empty(t, result.Fills)
	assert.Equal(t, int64(10), result.Remaining)
}

func TestSubmitOrderPriceEligibility(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-ELIG")
	maker := testutil.SeedUser(t, store, "maker@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "taker2@test.local", 100_000)

	// A resting NO at 30 implies a YES floor of 70; a YES bid of 60 does
	// not cross it.
	testutil.SeedOrder(t, store, maker.ID, market.ID, types.SideNo, 30, 10)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideYes, 60, 10)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)
	assert.Empty(t, result.Fills)
}

func TestSubmitOrderBlendedPrices(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-BLEND")
	makerA := testutil.SeedUser(t, store, "blend-a@test.local", 100_000)
	makerB := testutil.SeedUser(t, store, "blend-b@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "blend-t@test.local", 100_000)

	// NO at 45 implies YES 55; NO at 40 implies YES 60. The higher NO
	// price has priority, so the taker fills at 55 first.
	testutil.SeedOrder(t, store, makerA.ID, market.ID, types.SideNo, 45, 5)
	testutil.SeedOrder(t, store, makerB.ID, market.ID, types.SideNo, 40, 5)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideYes, 60, 10)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, 55, result.Fills[0].Price)
	assert.Equal(t, 60, result.Fills[1].Price)

	// The taker's average entry is volume-weighted: (55*5 + 60*5)/10.
	pos, err := store.Position(ctx, taker.ID, market.ID, types.SideYes)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.Quantity)
	assert.Equal(t, 58, pos.AvgPrice)
}

func TestSubmitOrderContinuesPastFailedFill(t *testing.T) {
	base := ledger.NewMemoryStore(zap.NewNop())
	store := testutil.NewFlakyStore(base)
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-FLAKY")
	makerA := testutil.SeedUser(t, store, "flaky-a@test.local", 100_000)
	makerB := testutil.SeedUser(t, store, "flaky-b@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "flaky-t@test.local", 100_000)

	first := testutil.SeedOrder(t, store, makerA.ID, market.ID, types.SideNo, 40, 5)
	second := testutil.SeedOrder(t, store, makerB.ID, market.ID, types.SideNo, 40, 5)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideYes, 60, 10)

	// The first settlement transaction fails; matching must continue with
	// the next candidate and the order's state reflect only committed fills.
	store.FailNext(1)

	result, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, second.ID, result.Fills[0].MatchedOrderID)
	assert.Equal(t, int64(5), result.Filled)
	assert.Equal(t, int64(5), result.Remaining)

	stored, err := store.Order(ctx, incoming.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderPartial, stored.Status)
	assert.Equal(t, int64(5), stored.Filled)

	// The skipped candidate is untouched.
	untouched, err := store.Order(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderOpen, untouched.Status)
	assert.Equal(t, int64(0), untouched.Filled)
}

func TestSubmitOrderValidation(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	tests := []struct {
		name  string
		order *types.Order
		code  string
	}{
		{
			name:  "invalid side",
			order: &types.Order{Side: "maybe", Price: 50, Quantity: 10},
			code:  types.ErrCodeInvalidSide,
		},
		{
			name:  "price too low",
			order: &types.Order{Side: types.SideYes, Price: 0, Quantity: 10},
			code:  types.ErrCodeInvalidPrice,
		},
		{
			name:  "price too high",
			order: &types.Order{Side: types.SideYes, Price: 100, Quantity: 10},
			code:  types.ErrCodeInvalidPrice,
		},
		{
			name:  "zero quantity",
			order: &types.Order{Side: types.SideYes, Price: 50, Quantity: 0},
			code:  types.ErrCodeInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.SubmitOrder(ctx, tt.order)
			require.Error(t, err)

			var orderErr *types.OrderError
			require.ErrorAs(t, err, &orderErr)
			assert.Equal(t, tt.code, orderErr.Code)
		})
	}
}

func TestSubmitOrderMarketNotOpen(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.CreateTestMarket("TEST-CLOSED", "closed market")
	market.Status = types.MarketClosed
	require.NoError(t, store.CreateMarket(ctx, market))

	user := testutil.SeedUser(t, store, "closed@test.local", 100_000)
	order := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 60, 10)

	_, err := eng.SubmitOrder(ctx, order)
	require.Error(t, err)

	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, types.ErrCodeMarketNotOpen, orderErr.Code)
}

func TestResolveMarketPaysWinnersOnce(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-D")
	winner := testutil.SeedUser(t, store, "winner@test.local", 100_000)
	loser := testutil.SeedUser(t, store, "loser@test.local", 100_000)

	// Trade 10 contracts at 60 so the winner holds YES 10 and the loser NO 10.
	testutil.SeedOrder(t, store, loser.ID, market.ID, types.SideNo, 40, 10)
	incoming := testutil.SeedOrder(t, store, winner.ID, market.ID, types.SideYes, 60, 10)
	_, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	err = eng.ResolveMarket(ctx, market.ID, types.SideYes)
	require.NoError(t, err)

	// 10 winning contracts redeem at 100 cents each, exactly once.
	after, err := store.User(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000-600+1000), after.Balance)

	loserAfter, err := store.User(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000-400), loserAfter.Balance)

	settled, err := store.Market(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MarketSettled, settled.Status)
	assert.Equal(t, types.SideYes, settled.ResolvedOutcome)

	// A second resolution is rejected without a second payout.
	err = eng.ResolveMarket(ctx, market.ID, types.SideYes)
	require.ErrorIs(t, err, types.ErrMarketSettled)

	unchanged, err := store.User(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, after.Balance, unchanged.Balance)
}

func TestResolveMarketCancelsRestingOrders(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-CANCEL")
	user := testutil.SeedUser(t, store, "cancel@test.local", 100_000)
	resting := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 55, 10)

	err := eng.ResolveMarket(ctx, market.ID, types.SideNo)
	require.NoError(t, err)

	stored, err := store.Order(ctx, resting.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCancelled, stored.Status)
}

func TestResolveMarketInvalidOutcome(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)

	err := eng.ResolveMarket(context.Background(), 1, "maybe")
	require.ErrorIs(t, err, types.ErrInvalidOutcome)
}

func TestSubmitOrderPublishesPriceUpdates(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-FEED")
	maker := testutil.SeedUser(t, store, "feed-m@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "feed-t@test.local", 100_000)

	testutil.SeedOrder(t, store, maker.ID, market.ID, types.SideNo, 40, 10)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideYes, 60, 10)

	_, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	select {
	case update := <-eng.Updates():
		assert.Equal(t, market.ID, update.MarketID)
		assert.Equal(t, market.Ticker, update.Ticker)
		assert.Equal(t, 60, update.Price)
		assert.NotEmpty(t, update.EventID)
	default:
		t.Fatal("expected a price update on the feed channel")
	}
}

func TestCancelOrderMarksResting(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-CANCEL")
	user := testutil.SeedUser(t, store, "cancel@test.local", 100_000)
	order := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 60, 10)

	require.NoError(t, eng.CancelOrder(ctx, order.ID, market.ID))

	stored, err := store.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCancelled, stored.Status)

	// A second cancel fails the resting check.
	err = eng.CancelOrder(ctx, order.ID, market.ID)
	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, types.ErrCodeNotCancellable, orderErr.Code)
}

func TestCancelOrderRejectsFilled(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-CANCEL-FILLED")
	maker := testutil.SeedUser(t, store, "cancel-maker@test.local", 100_000)
	taker := testutil.SeedUser(t, store, "cancel-taker@test.local", 100_000)

	resting := testutil.SeedOrder(t, store, maker.ID, market.ID, types.SideYes, 60, 10)
	incoming := testutil.SeedOrder(t, store, taker.ID, market.ID, types.SideNo, 40, 10)

	_, err := eng.SubmitOrder(ctx, incoming)
	require.NoError(t, err)

	err = eng.CancelOrder(ctx, resting.ID, market.ID)
	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, types.ErrCodeNotCancellable, orderErr.Code)
}

func TestCancelOrderSerializesWithMatchingPass(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	eng := newTestEngine(t, store)
	ctx := context.Background()

	market := testutil.SeedMarket(t, store, "TEST-CANCEL-RACE")
	user := testutil.SeedUser(t, store, "cancel-race@test.local", 100_000)
	order := testutil.SeedOrder(t, store, user.ID, market.ID, types.SideYes, 60, 10)

	// Hold the market's stripe lock as an in-flight matching pass would.
	lock := eng.marketLock(market.ID)
	lock.Lock()

	done := make(chan error, 1)
	go func() {
		done <- eng.CancelOrder(ctx, order.ID, market.ID)
	}()

	select {
	case <-done:
		t.Fatal("cancel completed while the market lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	lock.Unlock()

	require.NoError(t, <-done)

	stored, err := store.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCancelled, stored.Status)
}
