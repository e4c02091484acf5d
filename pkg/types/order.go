package types

import "time"

// Side identifies which outcome an order or position is on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two tradable sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderPartial   OrderStatus = "partial"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// Price bounds for limit orders, in cents. A contract pair always escrows
// exactly 100 cents, so a price of 0 or 100 would be a free option.
const (
	MinPrice = 1
	MaxPrice = 99
)

// Order is a limit order for contracts on one side of a market.
// Price is in integer cents (1-99) and is the price of the order's own side.
type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	MarketID  int64       `json:"market_id"`
	Side      Side        `json:"side"`
	Price     int         `json:"price"`
	Quantity  int64       `json:"quantity"`
	Filled    int64       `json:"filled_quantity"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Available returns the unfilled quantity still resting in the book.
func (o *Order) Available() int64 {
	return o.Quantity - o.Filled
}

// Resting reports whether the order can still be matched against.
func (o *Order) Resting() bool {
	return o.Status == OrderOpen || o.Status == OrderPartial
}

// FillReport summarizes a single committed fill from the incoming
// order's perspective.
type FillReport struct {
	FillID         int64 `json:"fill_id"`
	Price          int   `json:"price"` // YES-side trade price
	Quantity       int64 `json:"quantity"`
	MatchedOrderID int64 `json:"matched_order_id"`
}

// MatchResult is the outcome of one matching pass over the book.
type MatchResult struct {
	Fills     []FillReport `json:"fills"`
	Filled    int64        `json:"filled_quantity"`
	Remaining int64        `json:"remaining_quantity"`
}
