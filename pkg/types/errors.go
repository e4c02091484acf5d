package types

import (
	"errors"
	"fmt"
)

// OrderError represents a rejected or failed order operation.
type OrderError struct {
	Code    string // internal error code
	Message string // human-readable error message
	OrderID int64  // order ID if one was assigned
	Side    string // yes or no
}

func (e *OrderError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("%s order failed (ID: %d): %s (%s)", e.Side, e.OrderID, e.Message, e.Code)
	}

	return fmt.Sprintf("%s order failed: %s (%s)", e.Side, e.Message, e.Code)
}

// Known order rejection codes.
const (
	ErrCodeInvalidSide     = "INVALID_SIDE"
	ErrCodeInvalidPrice    = "INVALID_PRICE"
	ErrCodeInvalidQuantity = "INVALID_QUANTITY"
	ErrCodeMarketNotOpen   = "MARKET_NOT_OPEN"
	ErrCodeNotEnoughFunds  = "NOT_ENOUGH_BALANCE"
	ErrCodeNotOwner        = "NOT_ORDER_OWNER"
	ErrCodeNotCancellable  = "ORDER_NOT_CANCELLABLE"
)

// Sentinel errors shared across the intake and resolution paths.
var (
	ErrMarketNotFound    = errors.New("market not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrTickerTaken       = errors.New("ticker already exists")
	ErrEmailTaken        = errors.New("email already exists")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrMarketSettled     = errors.New("market already settled")
	ErrInvalidOutcome    = errors.New("outcome must be yes or no")
	ErrInsufficientFunds = errors.New("insufficient balance")
)
