package engine

import (
	"context"
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrMarketPaused is returned when the settlement breaker has paused a
// market after repeated settlement failures.
var ErrMarketPaused = fmt.Errorf("market paused by settlement breaker")

// SubmitOrder runs one matching pass for a newly admitted order. The order
// must already be persisted as open with zero filled quantity; intake
// validation (price bounds, quantity, balance) is assumed to have passed.
//
// Each candidate fill is committed independently: a failed settlement is
// logged and skipped, and matching continues with the next candidate. The
// order's own filled quantity and status are written once, after the pass.
func (e *Engine) SubmitOrder(ctx context.Context, order *types.Order) (*types.MatchResult, error) {
	if !order.Side.Valid() {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidSide, Message: "side must be yes or no", OrderID: order.ID, Side: string(order.Side)}
	}
	if order.Price < types.MinPrice || order.Price > types.MaxPrice {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidPrice, Message: fmt.Sprintf("price %d out of range", order.Price), OrderID: order.ID, Side: string(order.Side)}
	}
	if order.Quantity < 1 {
		return nil, &types.OrderError{Code: types.ErrCodeInvalidQuantity, Message: "quantity must be positive", OrderID: order.ID, Side: string(order.Side)}
	}

	if !e.breaker.Allow(order.MarketID) {
		return nil, ErrMarketPaused
	}

	// Serialize against concurrent matching and resolution in this market.
	lock := e.marketLock(order.MarketID)
	lock.Lock()
	defer lock.Unlock()

	timer := prometheus.NewTimer(MatchPassDuration)
	defer timer.ObserveDuration()

	market, err := e.store.Market(ctx, order.MarketID)
	if err != nil {
		return nil, fmt.Errorf("load market: %w", err)
	}
	if !market.Tradable() {
		return nil, &types.OrderError{Code: types.ErrCodeMarketNotOpen, Message: "market is not open for trading", OrderID: order.ID, Side: string(order.Side)}
	}

	OrdersSubmittedTotal.WithLabelValues(string(order.Side)).Inc()

	// A resting order on the opposing side is eligible iff its price
	// covers the remainder of the 100-cent contract pair.
	minOpposingPrice := 100 - order.Price
	candidates, err := e.books.Candidates(ctx, order.MarketID, order.Side.Opposite(), minOpposingPrice, order.UserID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	result := &types.MatchResult{Fills: []types.FillReport{}}
	remaining := order.Quantity

	for _, resting := range candidates {
		if remaining <= 0 {
			break
		}

		fillQty := remaining
		if avail := resting.Available(); avail < fillQty {
			fillQty = avail
		}

		// The resting order anchors the trade: the incoming order
		// receives whatever economic price the resting order implies.
		yesPrice := resting.Price
		if resting.Side == types.SideNo {
			yesPrice = 100 - resting.Price
		}

		fillID, err := e.settleFill(ctx, order, resting, fillQty, yesPrice)
		if err != nil {
			// Best-effort policy: abandon this candidate, keep
			// matching. The order's final state reflects only
			// committed fills.
			FillFailuresTotal.Inc()
			e.breaker.RecordFailure(order.MarketID)
			e.logger.Error("fill-settlement-failed",
				zap.Int64("order-id", order.ID),
				zap.Int64("resting-order-id", resting.ID),
				zap.Int64("quantity", fillQty),
				zap.Int("yes-price", yesPrice),
				zap.Error(err))
			continue
		}

		e.breaker.RecordSuccess(order.MarketID)
		FillsCommittedTotal.Inc()
		ContractsTradedTotal.Add(float64(fillQty))

		result.Fills = append(result.Fills, types.FillReport{
			FillID:         fillID,
			Price:          yesPrice,
			Quantity:       fillQty,
			MatchedOrderID: resting.ID,
		})
		remaining -= fillQty

		e.publishUpdate(market.ID, market.Ticker, yesPrice)
	}

	result.Filled = order.Quantity - remaining
	result.Remaining = remaining

	// Write the incoming order's state once for the whole pass. With zero
	// fills it simply stays resting as open.
	if result.Filled > 0 {
		status := types.OrderPartial
		if remaining == 0 {
			status = types.OrderFilled
		}

		err = e.store.InTx(ctx, func(tx ledger.Tx) error {
			return tx.UpdateOrderFill(order.ID, result.Filled, status)
		})
		if err != nil {
			return nil, fmt.Errorf("update incoming order: %w", err)
		}
		order.Filled = result.Filled
		order.Status = status
	}

	e.logger.Info("order-matched",
		zap.Int64("order-id", order.ID),
		zap.Int64("market-id", order.MarketID),
		zap.String("side", string(order.Side)),
		zap.Int("price", order.Price),
		zap.Int64("filled", result.Filled),
		zap.Int64("remaining", result.Remaining),
		zap.Int("fills", len(result.Fills)))

	return result, nil
}
