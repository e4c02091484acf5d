package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// settleFill commits one fill of fillQty contracts at yesPrice between the
// incoming order and a resting order as a single atomic transaction:
// both debits, the fill record, both position upserts, and the resting
// order's fill state. A partial application is never observable.
//
// The resting order's available quantity is re-read inside the transaction,
// so the read and the filled_quantity write cannot race.
func (e *Engine) settleFill(ctx context.Context, incoming, resting *types.Order, fillQty int64, yesPrice int) (int64, error) {
	timer := prometheus.NewTimer(SettlementDuration)
	defer timer.ObserveDuration()

	var fillID int64

	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		current, err := tx.Order(resting.ID)
		if err != nil {
			return fmt.Errorf("reload resting order: %w", err)
		}
		if !current.Resting() {
			return fmt.Errorf("resting order %d no longer matchable (status %s)", current.ID, current.Status)
		}
		if current.Available() < fillQty {
			return fmt.Errorf("resting order %d has %d available, need %d", current.ID, current.Available(), fillQty)
		}

		yesOrder, noOrder := incoming, current
		if incoming.Side == types.SideNo {
			yesOrder, noOrder = current, incoming
		}

		yesCost := int64(yesPrice) * fillQty
		noCost := int64(100-yesPrice) * fillQty

		// Lock both users in ID order so concurrent fills touching the
		// same pair cannot deadlock.
		err = lockUsers(tx, yesOrder.UserID, noOrder.UserID)
		if err != nil {
			return err
		}

		err = tx.AdjustBalance(yesOrder.UserID, -yesCost)
		if err != nil {
			return fmt.Errorf("debit yes user %d: %w", yesOrder.UserID, err)
		}

		err = tx.AdjustBalance(noOrder.UserID, -noCost)
		if err != nil {
			return fmt.Errorf("debit no user %d: %w", noOrder.UserID, err)
		}

		fill := &types.Fill{
			MarketID:   incoming.MarketID,
			YesOrderID: yesOrder.ID,
			NoOrderID:  noOrder.ID,
			Price:      yesPrice,
			Quantity:   fillQty,
		}
		fillID, err = tx.InsertFill(fill)
		if err != nil {
			return err
		}

		err = applyFillToPosition(tx, yesOrder.UserID, incoming.MarketID, types.SideYes, fillQty, yesPrice)
		if err != nil {
			return fmt.Errorf("upsert yes position: %w", err)
		}

		err = applyFillToPosition(tx, noOrder.UserID, incoming.MarketID, types.SideNo, fillQty, 100-yesPrice)
		if err != nil {
			return fmt.Errorf("upsert no position: %w", err)
		}

		newFilled := current.Filled + fillQty
		status := types.OrderPartial
		if newFilled >= current.Quantity {
			status = types.OrderFilled
		}
		err = tx.UpdateOrderFill(current.ID, newFilled, status)
		if err != nil {
			return fmt.Errorf("update resting order: %w", err)
		}

		// Keep the caller's view of the resting order current so the
		// next loop iteration sees the committed fill.
		resting.Filled = newFilled
		resting.Status = status

		return nil
	})
	if err != nil {
		return 0, err
	}

	return fillID, nil
}

func lockUsers(tx ledger.Tx, a, b int64) error {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	_, err := tx.UserForUpdate(first)
	if err != nil {
		return fmt.Errorf("lock user %d: %w", first, err)
	}
	if second != first {
		_, err = tx.UserForUpdate(second)
		if err != nil {
			return fmt.Errorf("lock user %d: %w", second, err)
		}
	}
	return nil
}

// applyFillToPosition folds one fill into the (user, market, side) position,
// creating it on the user's first fill for that key. The average entry
// price is volume-weighted and rounded half up to the nearest cent.
func applyFillToPosition(tx ledger.Tx, userID, marketID int64, side types.Side, fillQty int64, tradePrice int) error {
	pos, err := tx.Position(userID, marketID, side)
	if errors.Is(err, types.ErrPositionNotFound) {
		return tx.UpsertPosition(&types.Position{
			UserID:   userID,
			MarketID: marketID,
			Side:     side,
			Quantity: fillQty,
			AvgPrice: tradePrice,
		})
	}
	if err != nil {
		return err
	}

	newQty := pos.Quantity + fillQty
	weighted := int64(pos.AvgPrice)*pos.Quantity + int64(tradePrice)*fillQty
	pos.AvgPrice = int((weighted + newQty/2) / newQty)
	pos.Quantity = newQty

	return tx.UpsertPosition(pos)
}
