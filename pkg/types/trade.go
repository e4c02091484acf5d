package types

import "time"

// Fill is one committed trade between a YES order and a NO order.
// Price is the YES-side price; the NO side paid 100 - Price. Fills are
// append-only: the permanent trade log is never mutated or deleted.
type Fill struct {
	ID         int64     `json:"id"`
	MarketID   int64     `json:"market_id"`
	YesOrderID int64     `json:"yes_order_id"`
	NoOrderID  int64     `json:"no_order_id"`
	Price      int       `json:"price"`
	Quantity   int64     `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// NoPrice returns the NO-side price of the trade.
func (f *Fill) NoPrice() int {
	return 100 - f.Price
}

// PricePoint is one observation in a market's trade-price history.
type PricePoint struct {
	MarketID  int64     `json:"market_id"`
	Price     int       `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdate is published after every committed fill for downstream
// live-update fan-out. Delivery is the feed hub's concern, not the engine's.
type PriceUpdate struct {
	EventID   string    `json:"event_id"`
	MarketID  int64     `json:"market_id"`
	Ticker    string    `json:"ticker"`
	Price     int       `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
