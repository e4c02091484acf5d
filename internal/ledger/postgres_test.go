package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &PostgresStore{db: db, logger: zap.NewNop()}, mock
}

func TestPostgresInTxCommit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0`)).
		WithArgs(int64(-600), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.AdjustBalance(1, -600)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInTxRollbackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	injected := errors.New("abort")
	err := store.InTx(context.Background(), func(tx Tx) error {
		return injected
	})
	require.ErrorIs(t, err, injected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjustBalanceInsufficientFunds(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0`)).
		WithArgs(int64(-600), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.AdjustBalance(1, -600)
	})
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjustBalanceUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0`)).
		WithArgs(int64(100), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.AdjustBalance(99, 100)
	})
	require.ErrorIs(t, err, types.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserForUpdate(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, balance, created_at FROM users WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "balance", "created_at"}).
			AddRow(int64(1), "a@test.local", int64(5000), now))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		u, err := tx.UserForUpdate(1)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(5000), u.Balance)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, balance) VALUES ($1, $2) RETURNING id, created_at`)).
		WithArgs("dup@test.local", int64(1000)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateUser(context.Background(), &types.User{Email: "dup@test.local", Balance: 1000})
	require.ErrorIs(t, err, types.ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLastTradePriceNoTrades(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT price FROM fills WHERE market_id = $1 ORDER BY id DESC LIMIT 1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"price"}))

	price, traded, err := store.LastTradePrice(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, traded)
	assert.Zero(t, price)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBestBidEmptySide(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(price) FROM orders`)).
		WithArgs(int64(7), "yes").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	_, found, err := store.BestBid(context.Background(), 7, types.SideYes)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetMarketResolvedNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE markets SET status = 'settled', resolved_outcome = $1 WHERE id = $2`)).
		WithArgs("yes", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Tx) error {
		return tx.SetMarketResolved(42, types.SideYes)
	})
	require.ErrorIs(t, err, types.ErrMarketNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertFillReturnsID(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO fills (market_id, yes_order_id, no_order_id, price, quantity)`)).
		WithArgs(int64(1), int64(2), int64(3), 60, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), now))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Tx) error {
		id, err := tx.InsertFill(&types.Fill{MarketID: 1, YesOrderID: 2, NoOrderID: 3, Price: 60, Quantity: 10})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(9), id)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarketScanWithNullOutcome(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM markets WHERE ticker = $1`)).
		WithArgs("BTC-100K").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "ticker", "title", "description", "category", "status", "resolved_outcome", "settlement_date", "created_at",
		}).AddRow(int64(3), "BTC-100K", "BTC above 100k", "", "crypto", "open", nil, now, now))

	m, err := store.MarketByTicker(context.Background(), "BTC-100K")
	require.NoError(t, err)
	assert.Equal(t, types.MarketOpen, m.Status)
	assert.Empty(t, m.ResolvedOutcome)
	require.NoError(t, mock.ExpectationsWereMet())
}
