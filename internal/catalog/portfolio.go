package catalog

import (
	"context"
	"fmt"

	"github.com/mercatus-exchange/mercatus/pkg/types"
)

// Portfolio is a user's cash balance plus their valued positions.
type Portfolio struct {
	Balance   int64                 `json:"balance"`
	Positions []*types.PositionView `json:"positions"`
}

// Portfolio values a user's positions. Open markets are marked at the last
// trade price; settled markets mark winners at 100 and losers at 0 without
// mutating the position rows.
func (s *Service) Portfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := s.store.PositionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	views := make([]*types.PositionView, 0, len(positions))
	for _, pos := range positions {
		market, err := s.store.Market(ctx, pos.MarketID)
		if err != nil {
			return nil, fmt.Errorf("market %d: %w", pos.MarketID, err)
		}

		mark, err := s.markPrice(ctx, market, pos.Side)
		if err != nil {
			return nil, err
		}

		view := &types.PositionView{
			Position:     *pos,
			MarketTicker: market.Ticker,
			MarketTitle:  market.Title,
			MarketStatus: market.Status,
			MarkPrice:    mark,
			CurrentValue: pos.Quantity * int64(mark),
			CostBasis:    pos.Quantity * int64(pos.AvgPrice),
		}
		view.UnrealizedPL = view.CurrentValue - view.CostBasis
		views = append(views, view)
	}

	return &Portfolio{
		Balance:   user.Balance,
		Positions: views,
	}, nil
}

func (s *Service) markPrice(ctx context.Context, market *types.Market, side types.Side) (int, error) {
	if market.Status == types.MarketSettled {
		if market.ResolvedOutcome == side {
			return 100, nil
		}
		return 0, nil
	}

	last, traded, err := s.store.LastTradePrice(ctx, market.ID)
	if err != nil {
		return 0, fmt.Errorf("last trade price: %w", err)
	}
	if !traded {
		return defaultLastPrice, nil
	}

	// The trade log records YES prices; a NO holder's mark is the complement.
	if side == types.SideNo {
		return 100 - last, nil
	}
	return last, nil
}

// TradeHistory returns a user's fills, newest first.
func (s *Service) TradeHistory(ctx context.Context, userID int64, limit int) ([]*types.Fill, error) {
	fills, err := s.store.FillsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("fills: %w", err)
	}
	if fills == nil {
		fills = []*types.Fill{}
	}
	return fills, nil
}
