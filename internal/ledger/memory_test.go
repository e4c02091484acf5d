package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedUser(t *testing.T, s *MemoryStore, email string, balance int64) *types.User {
	t.Helper()
	u := &types.User{Email: email, Balance: balance}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedMarket(t *testing.T, s *MemoryStore, ticker string) *types.Market {
	t.Helper()
	m := &types.Market{Ticker: ticker, Title: ticker, Status: types.MarketOpen}
	require.NoError(t, s.CreateMarket(context.Background(), m))
	return m
}

func seedOrder(t *testing.T, s *MemoryStore, userID, marketID int64, side types.Side, price int, qty int64) *types.Order {
	t.Helper()
	o := &types.Order{UserID: userID, MarketID: marketID, Side: side, Price: price, Quantity: qty, Status: types.OrderOpen}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	seedUser(t, s, "dup@test.local", 1000)

	err := s.CreateUser(ctx, &types.User{Email: "DUP@test.local", Balance: 1000})
	require.ErrorIs(t, err, types.ErrEmailTaken)
}

func TestCreateMarketDuplicateTicker(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	seedMarket(t, s, "DUP")

	err := s.CreateMarket(ctx, &types.Market{Ticker: "DUP", Title: "again"})
	require.ErrorIs(t, err, types.ErrTickerTaken)
}

func TestInTxRollbackRestoresEverything(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "rollback@test.local", 5000)
	market := seedMarket(t, s, "ROLLBACK")
	order := seedOrder(t, s, user.ID, market.ID, types.SideYes, 60, 10)

	injected := errors.New("abort")
	err := s.InTx(ctx, func(tx Tx) error {
		_, err := tx.UserForUpdate(user.ID)
		require.NoError(t, err)
		require.NoError(t, tx.AdjustBalance(user.ID, -600))
		require.NoError(t, tx.UpdateOrderFill(order.ID, 10, types.OrderFilled))

		_, err = tx.InsertFill(&types.Fill{MarketID: market.ID, YesOrderID: order.ID, NoOrderID: order.ID, Price: 60, Quantity: 10})
		require.NoError(t, err)

		require.NoError(t, tx.UpsertPosition(&types.Position{
			UserID: user.ID, MarketID: market.ID, Side: types.SideYes, Quantity: 10, AvgPrice: 60,
		}))
		require.NoError(t, tx.SetMarketResolved(market.ID, types.SideYes))

		return injected
	})
	require.ErrorIs(t, err, injected)

	after, err := s.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), after.Balance)

	storedOrder, err := s.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderOpen, storedOrder.Status)
	assert.Equal(t, int64(0), storedOrder.Filled)

	fills, err := s.FillsByMarket(ctx, market.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, fills)

	_, err = s.Position(ctx, user.ID, market.ID, types.SideYes)
	require.ErrorIs(t, err, types.ErrPositionNotFound)

	storedMarket, err := s.Market(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MarketOpen, storedMarket.Status)
}

func TestInTxCommitPersists(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "commit@test.local", 5000)

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.AdjustBalance(user.ID, -600)
	})
	require.NoError(t, err)

	after, err := s.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4400), after.Balance)
}

func TestAdjustBalanceInsufficientFunds(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "poor@test.local", 100)

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.AdjustBalance(user.ID, -101)
	})
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	after, err := s.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after.Balance)
}

func TestUpsertPositionCreateThenUpdate(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "pos@test.local", 5000)
	market := seedMarket(t, s, "POS")

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.UpsertPosition(&types.Position{
			UserID: user.ID, MarketID: market.ID, Side: types.SideYes, Quantity: 5, AvgPrice: 50,
		})
	})
	require.NoError(t, err)

	pos, err := s.Position(ctx, user.ID, market.ID, types.SideYes)
	require.NoError(t, err)
	require.NotZero(t, pos.ID)

	err = s.InTx(ctx, func(tx Tx) error {
		pos.Quantity = 8
		pos.AvgPrice = 55
		return tx.UpsertPosition(pos)
	})
	require.NoError(t, err)

	updated, err := s.Position(ctx, user.ID, market.ID, types.SideYes)
	require.NoError(t, err)
	assert.Equal(t, pos.ID, updated.ID)
	assert.Equal(t, int64(8), updated.Quantity)
	assert.Equal(t, 55, updated.AvgPrice)
}

func TestCancelRestingOrders(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "cancel@test.local", 5000)
	market := seedMarket(t, s, "CANCEL")
	other := seedMarket(t, s, "OTHER")

	open := seedOrder(t, s, user.ID, market.ID, types.SideYes, 60, 10)
	partial := seedOrder(t, s, user.ID, market.ID, types.SideNo, 40, 10)
	require.NoError(t, s.UpdateOrderStatus(ctx, partial.ID, types.OrderPartial))
	filled := seedOrder(t, s, user.ID, market.ID, types.SideYes, 55, 10)
	require.NoError(t, s.UpdateOrderStatus(ctx, filled.ID, types.OrderFilled))
	elsewhere := seedOrder(t, s, user.ID, other.ID, types.SideYes, 50, 10)

	var cancelled int64
	err := s.InTx(ctx, func(tx Tx) error {
		var txErr error
		cancelled, txErr = tx.CancelRestingOrders(market.ID)
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)

	for _, id := range []int64{open.ID, partial.ID} {
		o, err := s.Order(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.OrderCancelled, o.Status)
	}

	untouched, err := s.Order(ctx, filled.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, untouched.Status)

	otherMarket, err := s.Order(ctx, elsewhere.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderOpen, otherMarket.Status)
}

func TestLastTradePriceAndVolume(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	market := seedMarket(t, s, "VOL")

	_, traded, err := s.LastTradePrice(ctx, market.ID)
	require.NoError(t, err)
	assert.False(t, traded)

	err = s.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertFill(&types.Fill{MarketID: market.ID, Price: 55, Quantity: 10})
		if err != nil {
			return err
		}
		_, err = tx.InsertFill(&types.Fill{MarketID: market.ID, Price: 62, Quantity: 5})
		return err
	})
	require.NoError(t, err)

	last, traded, err := s.LastTradePrice(ctx, market.ID)
	require.NoError(t, err)
	assert.True(t, traded)
	assert.Equal(t, 62, last)

	volume, trades, err := s.MarketVolume(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), volume)
	assert.Equal(t, int64(2), trades)
}

func TestBestBid(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "bid@test.local", 5000)
	market := seedMarket(t, s, "BID")

	_, found, err := s.BestBid(ctx, market.ID, types.SideYes)
	require.NoError(t, err)
	assert.False(t, found)

	seedOrder(t, s, user.ID, market.ID, types.SideYes, 55, 10)
	seedOrder(t, s, user.ID, market.ID, types.SideYes, 61, 10)
	cancelledOrder := seedOrder(t, s, user.ID, market.ID, types.SideYes, 70, 10)
	require.NoError(t, s.UpdateOrderStatus(ctx, cancelledOrder.ID, types.OrderCancelled))

	best, found, err := s.BestBid(ctx, market.ID, types.SideYes)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 61, best)
}

func TestPriceHistorySince(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	market := seedMarket(t, s, "HIST")

	now := time.Now()
	require.NoError(t, s.AppendPricePoint(ctx, market.ID, 40, now.Add(-2*time.Hour)))
	require.NoError(t, s.AppendPricePoint(ctx, market.ID, 50, now.Add(-30*time.Minute)))
	require.NoError(t, s.AppendPricePoint(ctx, market.ID, 60, now))

	points, err := s.PriceHistory(ctx, market.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 50, points[0].Price)
	assert.Equal(t, 60, points[1].Price)
}

func TestOrdersByUserFilter(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, s, "filter@test.local", 5000)
	other := seedUser(t, s, "other@test.local", 5000)
	market := seedMarket(t, s, "FILT-1")
	market2 := seedMarket(t, s, "FILT-2")

	seedOrder(t, s, user.ID, market.ID, types.SideYes, 50, 10)
	cancelledOrder := seedOrder(t, s, user.ID, market.ID, types.SideNo, 40, 10)
	require.NoError(t, s.UpdateOrderStatus(ctx, cancelledOrder.ID, types.OrderCancelled))
	seedOrder(t, s, user.ID, market2.ID, types.SideYes, 50, 10)
	seedOrder(t, s, other.ID, market.ID, types.SideYes, 50, 10)

	all, err := s.OrdersByUser(ctx, user.ID, OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byMarket, err := s.OrdersByUser(ctx, user.ID, OrderFilter{MarketID: market.ID})
	require.NoError(t, err)
	assert.Len(t, byMarket, 2)

	byStatus, err := s.OrdersByUser(ctx, user.ID, OrderFilter{Status: types.OrderCancelled})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, cancelledOrder.ID, byStatus[0].ID)
}
