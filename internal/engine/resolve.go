package engine

import (
	"context"
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// ResolveMarket settles a market with a binary outcome: every winning
// contract redeems for the full 100 cents escrowed across its matched
// trades, and all remaining resting orders are cancelled. Outcome setting,
// payout and cancellation commit as one atomic unit.
//
// Positions and fills are left in place as the permanent record; the read
// side prices losers at 0 and winners at 100 from the market's resolved
// outcome.
func (e *Engine) ResolveMarket(ctx context.Context, marketID int64, outcome types.Side) error {
	if !outcome.Valid() {
		return types.ErrInvalidOutcome
	}

	// Resolution must not interleave with matching in the same market.
	lock := e.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	var (
		payoutTotal     int64
		winnersPaid     int
		ordersCancelled int64
	)

	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		market, err := tx.Market(marketID)
		if err != nil {
			return err
		}
		if market.Status == types.MarketSettled {
			return types.ErrMarketSettled
		}

		err = tx.SetMarketResolved(marketID, outcome)
		if err != nil {
			return err
		}

		positions, err := tx.PositionsByMarket(marketID)
		if err != nil {
			return err
		}

		for _, pos := range positions {
			if pos.Side != outcome || pos.Quantity <= 0 {
				continue
			}

			payout := pos.Quantity * 100
			err = tx.AdjustBalance(pos.UserID, payout)
			if err != nil {
				return fmt.Errorf("pay out user %d: %w", pos.UserID, err)
			}
			payoutTotal += payout
			winnersPaid++
		}

		ordersCancelled, err = tx.CancelRestingOrders(marketID)
		if err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	MarketsResolvedTotal.Inc()
	ResolutionPayoutCents.Add(float64(payoutTotal))

	e.logger.Info("market-resolved",
		zap.Int64("market-id", marketID),
		zap.String("outcome", string(outcome)),
		zap.Int64("payout-cents", payoutTotal),
		zap.Int("winners-paid", winnersPaid),
		zap.Int64("orders-cancelled", ordersCancelled))

	return nil
}
