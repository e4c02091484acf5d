// Package circuitbreaker protects the ledger from repeated settlement
// failures. A persistence fault that keeps failing fills in one market is
// better handled by pausing that market than by burning every matching pass
// against it.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SettlementBreaker trips per market after a run of consecutive settlement
// failures and re-allows matching once a cooldown has elapsed. A single
// successful settlement resets the failure count.
type SettlementBreaker struct {
	failureThreshold int
	cooldown         time.Duration
	logger           *zap.Logger

	mu      sync.Mutex
	markets map[int64]*marketState
}

type marketState struct {
	consecutiveFailures int
	trippedAt           time.Time
	tripped             bool
}

// Config holds breaker configuration.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// New creates a settlement breaker.
func New(cfg *Config) (*SettlementBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureThreshold < 1 {
		return nil, fmt.Errorf("failure threshold must be at least 1")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}

	return &SettlementBreaker{
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		logger:           cfg.Logger,
		markets:          make(map[int64]*marketState),
	}, nil
}

// Allow reports whether matching may run in the given market. A tripped
// market is re-allowed after the cooldown; the next failure trips it again.
func (b *SettlementBreaker) Allow(marketID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.markets[marketID]
	if !ok || !st.tripped {
		return true
	}

	if time.Since(st.trippedAt) >= b.cooldown {
		st.tripped = false
		st.consecutiveFailures = 0
		BreakerTrippedMarkets.Dec()
		b.logger.Info("settlement-breaker-reset",
			zap.Int64("market-id", marketID))
		return true
	}

	return false
}

// RecordSuccess resets the failure count for a market.
func (b *SettlementBreaker) RecordSuccess(marketID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.markets[marketID]
	if !ok {
		return
	}
	st.consecutiveFailures = 0
}

// RecordFailure counts a settlement failure and trips the market when the
// consecutive-failure threshold is reached.
func (b *SettlementBreaker) RecordFailure(marketID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.markets[marketID]
	if !ok {
		st = &marketState{}
		b.markets[marketID] = st
	}

	st.consecutiveFailures++
	BreakerFailuresTotal.Inc()

	if !st.tripped && st.consecutiveFailures >= b.failureThreshold {
		st.tripped = true
		st.trippedAt = time.Now()
		BreakerTripsTotal.Inc()
		BreakerTrippedMarkets.Inc()
		b.logger.Error("settlement-breaker-tripped",
			zap.Int64("market-id", marketID),
			zap.Int("consecutive-failures", st.consecutiveFailures),
			zap.Duration("cooldown", b.cooldown))
	}
}
