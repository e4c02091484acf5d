package types

import "time"

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "open"
	MarketClosed  MarketStatus = "closed"
	MarketSettled MarketStatus = "settled"
)

// Market represents a binary-outcome market. Contracts on the resolved side
// redeem for 100 cents, the other side for 0.
type Market struct {
	ID              int64        `json:"id"`
	Ticker          string       `json:"ticker"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Status          MarketStatus `json:"status"`
	ResolvedOutcome Side         `json:"resolved_outcome,omitempty"` // empty until settled
	SettlementDate  string       `json:"settlement_date,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Tradable reports whether the market accepts new orders.
func (m *Market) Tradable() bool {
	return m.Status == MarketOpen
}

// MarketSummary is a market enriched with read-side pricing fields for
// listings. LastPrice defaults to 50 when the market has never traded.
type MarketSummary struct {
	Market
	LastPrice int   `json:"last_price"`
	YesBid    int   `json:"yes_bid,omitempty"`
	NoBid     int   `json:"no_bid,omitempty"`
	YesAsk    int   `json:"yes_ask,omitempty"` // 100 - best NO bid
	NoAsk     int   `json:"no_ask,omitempty"`  // 100 - best YES bid
	Volume    int64 `json:"volume"`
}
