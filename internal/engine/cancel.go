package engine

import (
	"context"
	"fmt"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// CancelOrder marks a resting order cancelled. It takes the market's stripe
// lock so the status write cannot interleave with a matching pass filling
// the same order, and repeats the resting check under the lock.
func (e *Engine) CancelOrder(ctx context.Context, orderID, marketID int64) error {
	lock := e.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Resting() {
		return &types.OrderError{Code: types.ErrCodeNotCancellable, Message: fmt.Sprintf("cannot cancel %s order", order.Status), OrderID: orderID, Side: string(order.Side)}
	}

	err = e.store.UpdateOrderStatus(ctx, orderID, types.OrderCancelled)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	e.logger.Info("order-cancelled",
		zap.Int64("order-id", orderID),
		zap.Int64("market-id", marketID))

	return nil
}
