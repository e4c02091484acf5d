// Package ledger is the durable record of users, markets, orders, fills and
// positions. It owns no matching behavior; it provides the atomic read/write
// operations the engine composes into transactions.
package ledger

import (
	"context"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
)

// Tx is the set of operations available inside one atomic ledger
// transaction. Every mutation performed through a Tx is applied
// all-or-nothing: if the transaction function returns an error, none of its
// writes become observable.
type Tx interface {
	// UserForUpdate reads a user row and holds it exclusively until the
	// transaction ends. Balance mutations for that user by concurrent
	// transactions block on this lock.
	UserForUpdate(id int64) (*types.User, error)

	// AdjustBalance adds delta cents (negative for a debit) to a user's
	// balance. Returns types.ErrInsufficientFunds if the debit would take
	// the balance below zero.
	AdjustBalance(userID int64, delta int64) error

	Market(id int64) (*types.Market, error)

	// SetMarketResolved transitions a market to settled with the given
	// outcome.
	SetMarketResolved(marketID int64, outcome types.Side) error

	Order(id int64) (*types.Order, error)

	// UpdateOrderFill sets an order's filled quantity and status.
	UpdateOrderFill(orderID int64, filled int64, status types.OrderStatus) error

	// InsertFill appends one trade to the fill log and returns its ID.
	InsertFill(f *types.Fill) (int64, error)

	// Position returns the position for (user, market, side), or
	// types.ErrPositionNotFound if the user has never filled on that key.
	Position(userID, marketID int64, side types.Side) (*types.Position, error)

	// UpsertPosition creates the position if p.ID is zero, otherwise
	// updates quantity and average price in place.
	UpsertPosition(p *types.Position) error

	PositionsByMarket(marketID int64) ([]*types.Position, error)

	// CancelRestingOrders cancels every open or partial order in a market
	// and returns how many were cancelled.
	CancelRestingOrders(marketID int64) (int64, error)
}

// OrderFilter narrows OrdersByUser results. Zero values match everything.
type OrderFilter struct {
	MarketID int64
	Status   types.OrderStatus
}

// MarketFilter narrows Markets results. Zero values match everything.
type MarketFilter struct {
	Status   types.MarketStatus
	Category string
}

// Store is the full ledger surface. Point reads and writes outside InTx are
// individually consistent; anything that must be atomic across rows goes
// through InTx.
type Store interface {
	// InTx runs fn inside one atomic transaction, committing if fn
	// returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error

	CreateUser(ctx context.Context, u *types.User) error
	User(ctx context.Context, id int64) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)

	CreateMarket(ctx context.Context, m *types.Market) error
	Market(ctx context.Context, id int64) (*types.Market, error)
	MarketByTicker(ctx context.Context, ticker string) (*types.Market, error)
	Markets(ctx context.Context, f MarketFilter) ([]*types.Market, error)

	CreateOrder(ctx context.Context, o *types.Order) error
	Order(ctx context.Context, id int64) (*types.Order, error)
	OrdersByUser(ctx context.Context, userID int64, f OrderFilter) ([]*types.Order, error)

	// RestingOrders returns every open or partial order for one side of a
	// market, in no particular order. Sorting for match priority is the
	// book view's concern.
	RestingOrders(ctx context.Context, marketID int64, side types.Side) ([]*types.Order, error)

	UpdateOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error

	FillsByMarket(ctx context.Context, marketID int64, limit int) ([]*types.Fill, error)
	FillsByUser(ctx context.Context, userID int64, limit int) ([]*types.Fill, error)

	// LastTradePrice returns the YES price of the most recent fill in a
	// market. The second return is false if the market has never traded.
	LastTradePrice(ctx context.Context, marketID int64) (int, bool, error)

	// MarketVolume returns total contracts traded and the trade count.
	MarketVolume(ctx context.Context, marketID int64) (volume int64, trades int64, err error)

	// BestBid returns the highest resting price on one side of a market.
	// The second return is false if the side has no resting orders.
	BestBid(ctx context.Context, marketID int64, side types.Side) (int, bool, error)

	Position(ctx context.Context, userID, marketID int64, side types.Side) (*types.Position, error)
	PositionsByUser(ctx context.Context, userID int64) ([]*types.Position, error)

	AppendPricePoint(ctx context.Context, marketID int64, price int, at time.Time) error
	PriceHistory(ctx context.Context, marketID int64, since time.Time) ([]*types.PricePoint, error)

	Close() error
}
