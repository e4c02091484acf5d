// Package intake is the order admission layer in front of the engine. It
// validates incoming orders, performs the worst-case balance check, persists
// the order as open, and hands it to the matching engine. The engine itself
// assumes these checks have passed.
package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// Service admits orders into the engine and handles owner cancellation.
type Service struct {
	store  ledger.Store
	engine *engine.Engine
	logger *zap.Logger
}

// New creates an intake service.
func New(store ledger.Store, eng *engine.Engine, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		engine: eng,
		logger: logger,
	}
}

// PlaceRequest is a new order as submitted by a client.
type PlaceRequest struct {
	UserID       int64
	MarketTicker string
	Side         types.Side
	Price        int
	Quantity     int64
}

// PlaceResult is the admitted order plus its immediate matching outcome.
type PlaceResult struct {
	Order   *types.Order       `json:"order"`
	Fills   []types.FillReport `json:"fills"`
	Message string             `json:"message"`
}

// PlaceOrder validates, persists and matches a new order.
func (s *Service) PlaceOrder(ctx context.Context, req *PlaceRequest) (*PlaceResult, error) {
	if !req.Side.Valid() {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidSide, Message: "side must be yes or no", Side: string(req.Side)}
	}
	if req.Price < types.MinPrice || req.Price > types.MaxPrice {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidPrice, Message: fmt.Sprintf("price must be between %d and %d", types.MinPrice, types.MaxPrice), Side: string(req.Side)}
	}
	if req.Quantity < 1 {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidQuantity, Message: "quantity must be a positive integer", Side: string(req.Side)}
	}

	market, err := s.store.MarketByTicker(ctx, req.MarketTicker)
	if err != nil {
		return nil, err
	}
	if !market.Tradable() {
		return nil, &types.OrderError{Code: types.ErrCodeMarketNotOpen, Message: "market is not open for trading", Side: string(req.Side)}
	}

	user, err := s.store.User(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Worst case: every contract fills at the order's own price. Fills at
	// better prices cost less, never more.
	maxCost := int64(req.Price) * req.Quantity
	if user.Balance < maxCost {
		return nil, &types.OrderError{
			Code:    types.ErrCodeNotEnoughFunds,
			Message: fmt.Sprintf("insufficient balance: need %d cents, have %d", maxCost, user.Balance),
			Side:    string(req.Side),
		}
	}

	order := &types.Order{
		UserID:   req.UserID,
		MarketID: market.ID,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: req.Quantity,
		Status:   types.OrderOpen,
	}
	err = s.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order-admitted",
		zap.Int64("order-id", order.ID),
		zap.Int64("user-id", order.UserID),
		zap.String("ticker", market.Ticker),
		zap.String("side", string(order.Side)),
		zap.Int("price", order.Price),
		zap.Int64("quantity", order.Quantity))

	match, err := s.engine.SubmitOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("match order: %w", err)
	}

	return &PlaceResult{
		Order:   order,
		Fills:   match.Fills,
		Message: placeMessage(req.Price, match),
	}, nil
}

func placeMessage(price int, match *types.MatchResult) string {
	switch {
	case match.Filled == 0:
		return fmt.Sprintf("Order placed. Waiting for matches at %d¢.", price)
	case match.Remaining == 0:
		return fmt.Sprintf("Order fully filled! %d contracts at ~%d¢.", match.Filled, price)
	default:
		return fmt.Sprintf("Order partially filled. %d filled, %d remaining.", match.Filled, match.Remaining)
	}
}

// CancelOrder cancels an open or partial order on behalf of its owner. The
// status write goes through the engine so it is serialized with any matching
// pass on the same market.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID int64) error {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return err
	}

	if order.UserID != userID {
		return &types.OrderError{Code: types.ErrCodeNotOwner, Message: "not authorized to cancel this order", OrderID: orderID, Side: string(order.Side)}
	}
	if !order.Resting() {
		return &types.OrderError{Code: types.ErrCodeNotCancellable, Message: fmt.Sprintf("cannot cancel %s order", order.Status), OrderID: orderID, Side: string(order.Side)}
	}

	err = s.engine.CancelOrder(ctx, orderID, order.MarketID)
	if err != nil {
		return err
	}

	s.logger.Info("order-cancel-accepted",
		zap.Int64("order-id", orderID),
		zap.Int64("user-id", userID))

	return nil
}

// Orders returns a user's orders, newest first, optionally narrowed by
// market ticker and status.
func (s *Service) Orders(ctx context.Context, userID int64, ticker string, status types.OrderStatus) ([]*types.Order, error) {
	filter := ledger.OrderFilter{Status: status}

	if ticker != "" {
		market, err := s.store.MarketByTicker(ctx, ticker)
		if err != nil {
			if errors.Is(err, types.ErrMarketNotFound) {
				return []*types.Order{}, nil
			}
			return nil, err
		}
		filter.MarketID = market.ID
	}

	return s.store.OrdersByUser(ctx, userID, filter)
}
