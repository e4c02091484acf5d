// Package catalog is the market catalog and its read side: creating and
// listing markets, and enriching them with last-trade and best-bid pricing.
// Enrichment reads are served through a short-TTL cache so hot listing
// traffic does not hammer the ledger.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/mercatus-exchange/mercatus/internal/book"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/cache"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// defaultLastPrice is the quoted price for a market that has never traded.
const defaultLastPrice = 50

// Service provides catalog operations over the ledger.
type Service struct {
	store    ledger.Store
	books    *book.View
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Config holds catalog service configuration.
type Config struct {
	Store    ledger.Store
	Books    *book.View
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// New creates a catalog service.
func New(cfg *Config) *Service {
	return &Service{
		store:    cfg.Store,
		books:    cfg.Books,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
}

// CreateRequest describes a new market.
type CreateRequest struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	SettlementDate string `json:"settlement_date"`
}

// Create adds a new open market to the catalog.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*types.Market, error) {
	if req.Ticker == "" || req.Title == "" {
		return nil, fmt.Errorf("ticker and title required")
	}

	category := req.Category
	if category == "" {
		category = "general"
	}

	settlementDate := time.Now().AddDate(0, 0, 30)
	if req.SettlementDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.SettlementDate)
		if err != nil {
			return nil, fmt.Errorf("invalid settlement_date: %w", err)
		}
		settlementDate = parsed
	}

	market := &types.Market{
		Ticker:         req.Ticker,
		Title:          req.Title,
		Description:    req.Description,
		Category:       category,
		Status:         types.MarketOpen,
		SettlementDate: settlementDate.Format(time.RFC3339),
	}
	err := s.store.CreateMarket(ctx, market)
	if err != nil {
		return nil, err
	}

	s.invalidateListings()

	s.logger.Info("market-created",
		zap.Int64("market-id", market.ID),
		zap.String("ticker", market.Ticker))

	return market, nil
}

// List returns all markets matching the filter, enriched with read-side
// pricing. Unfiltered listings are cached for a short TTL.
func (s *Service) List(ctx context.Context, f ledger.MarketFilter) ([]*types.MarketSummary, error) {
	cacheable := f == (ledger.MarketFilter{})
	if cacheable {
		if cached, found := s.cache.Get(listCacheKey); found {
			if summaries, ok := cached.([]*types.MarketSummary); ok {
				return summaries, nil
			}
		}
	}

	markets, err := s.store.Markets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	summaries := make([]*types.MarketSummary, 0, len(markets))
	for _, m := range markets {
		summary, err := s.enrich(ctx, m)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	if cacheable {
		s.cache.Set(listCacheKey, summaries, s.cacheTTL)
	}

	return summaries, nil
}

const listCacheKey = "catalog:markets"

func (s *Service) invalidateListings() {
	s.cache.Delete(listCacheKey)
}

func (s *Service) enrich(ctx context.Context, m *types.Market) (*types.MarketSummary, error) {
	summary := &types.MarketSummary{Market: *m, LastPrice: defaultLastPrice}

	last, traded, err := s.store.LastTradePrice(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("last trade price: %w", err)
	}
	if traded {
		summary.LastPrice = last
	}

	yesBid, hasYes, err := s.store.BestBid(ctx, m.ID, types.SideYes)
	if err != nil {
		return nil, fmt.Errorf("best yes bid: %w", err)
	}
	if hasYes {
		summary.YesBid = yesBid
		summary.NoAsk = 100 - yesBid
	}

	noBid, hasNo, err := s.store.BestBid(ctx, m.ID, types.SideNo)
	if err != nil {
		return nil, fmt.Errorf("best no bid: %w", err)
	}
	if hasNo {
		summary.NoBid = noBid
		summary.YesAsk = 100 - noBid
	}

	summary.Volume, _, err = s.store.MarketVolume(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("market volume: %w", err)
	}

	return summary, nil
}

// MarketDetail is one market with its full book snapshot, recent trades and
// volume stats.
type MarketDetail struct {
	Market       *types.MarketSummary `json:"market"`
	Book         *book.Snapshot       `json:"orderbook"`
	RecentTrades []*types.Fill        `json:"recent_trades"`
	Volume       int64                `json:"volume"`
	TradeCount   int64                `json:"trade_count"`
}

// recentTradeLimit bounds the trade list on the market detail view.
const recentTradeLimit = 20

// Get returns one market by ticker with its book and recent trades.
func (s *Service) Get(ctx context.Context, ticker string) (*MarketDetail, error) {
	market, err := s.store.MarketByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	summary, err := s.enrich(ctx, market)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.books.Snapshot(ctx, market.ID)
	if err != nil {
		return nil, fmt.Errorf("book snapshot: %w", err)
	}

	trades, err := s.store.FillsByMarket(ctx, market.ID, recentTradeLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	if trades == nil {
		trades = []*types.Fill{}
	}

	volume, count, err := s.store.MarketVolume(ctx, market.ID)
	if err != nil {
		return nil, fmt.Errorf("market volume: %w", err)
	}

	return &MarketDetail{
		Market:       summary,
		Book:         snapshot,
		RecentTrades: trades,
		Volume:       volume,
		TradeCount:   count,
	}, nil
}
