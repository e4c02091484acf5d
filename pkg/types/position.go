package types

import "time"

// User is an account holder. Balance is in integer cents and must never go
// negative through engine operations.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Position is a user's contract holding on one side of one market, keyed by
// (user, market, side). AvgPrice is the volume-weighted average entry price
// in cents, rounded to the nearest integer. Positions are never deleted;
// settlement leaves quantity unchanged and the read side projects winner
// value at 100 and loser value at 0.
type Position struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	MarketID int64 `json:"market_id"`
	Side     Side  `json:"side"`
	Quantity int64 `json:"quantity"`
	AvgPrice int   `json:"avg_price"`
}

// PositionView is a position enriched with read-side valuation for the
// portfolio endpoint.
type PositionView struct {
	Position
	MarketTicker string       `json:"market_ticker"`
	MarketTitle  string       `json:"market_title"`
	MarketStatus MarketStatus `json:"market_status"`
	MarkPrice    int          `json:"mark_price"`    // last trade, or 100/0 once settled
	CurrentValue int64        `json:"current_value"` // Quantity * MarkPrice
	CostBasis    int64        `json:"cost_basis"`    // Quantity * AvgPrice
	UnrealizedPL int64        `json:"unrealized_pl"`
}
