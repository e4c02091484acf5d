// Package book derives the resting order book from the ledger. It is a pure
// projection: nothing here is persisted separately, and match priority is
// computed fresh from ledger state on every pass.
package book

import (
	"context"
	"sort"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
)

// View projects resting orders out of the ledger.
type View struct {
	store ledger.Store
}

// New creates a book view over the given ledger.
func New(store ledger.Store) *View {
	return &View{store: store}
}

// Resting returns all open or partial orders for (market, side) in match
// priority order: price descending, then creation time ascending, with ID
// as the final tiebreak so ordering is total.
func (v *View) Resting(ctx context.Context, marketID int64, side types.Side) ([]*types.Order, error) {
	orders, err := v.store.RestingOrders(ctx, marketID, side)
	if err != nil {
		return nil, err
	}

	SortByPriority(orders)
	return orders, nil
}

// Candidates returns the opposing-side orders eligible to match an incoming
// order: resting, priced at or above minPrice, and not owned by excludeUser
// (no self-matching). Results are in match priority order.
func (v *View) Candidates(ctx context.Context, marketID int64, side types.Side, minPrice int, excludeUser int64) ([]*types.Order, error) {
	orders, err := v.store.RestingOrders(ctx, marketID, side)
	if err != nil {
		return nil, err
	}

	eligible := orders[:0]
	for _, o := range orders {
		if o.Price >= minPrice && o.UserID != excludeUser {
			eligible = append(eligible, o)
		}
	}

	SortByPriority(eligible)
	return eligible, nil
}

// SortByPriority orders resting orders by price-time priority: best price
// first, earliest arrival among equal prices. Partially filled orders keep
// their original time priority.
func SortByPriority(orders []*types.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			return orders[i].Price > orders[j].Price
		}
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}

// Level is the aggregate resting quantity at one price.
type Level struct {
	Price    int   `json:"price"`
	Quantity int64 `json:"quantity"`
}

// Levels aggregates one side of the book by price level, ascending by
// price, for the read-side book snapshot.
func (v *View) Levels(ctx context.Context, marketID int64, side types.Side) ([]Level, error) {
	orders, err := v.store.RestingOrders(ctx, marketID, side)
	if err != nil {
		return nil, err
	}

	byPrice := make(map[int]int64)
	for _, o := range orders {
		byPrice[o.Price] += o.Available()
	}

	levels := make([]Level, 0, len(byPrice))
	for price, qty := range byPrice {
		levels = append(levels, Level{Price: price, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	return levels, nil
}

// Snapshot is both sides of a market's book, aggregated by price level.
type Snapshot struct {
	Yes []Level `json:"yes"`
	No  []Level `json:"no"`
}

// Snapshot returns the full two-sided book for a market.
func (v *View) Snapshot(ctx context.Context, marketID int64) (*Snapshot, error) {
	yes, err := v.Levels(ctx, marketID, types.SideYes)
	if err != nil {
		return nil, err
	}

	no, err := v.Levels(ctx, marketID, types.SideNo)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Yes: yes, No: no}, nil
}
