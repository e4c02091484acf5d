// Package engine is the order matching and settlement core: it pairs
// incoming orders against the resting book, commits each fill atomically
// against the ledger, and resolves markets at expiry.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mercatus-exchange/mercatus/internal/book"
	"github.com/mercatus-exchange/mercatus/internal/circuitbreaker"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// lockStripes is the size of the per-market lock stripe. Matching and
// resolution for one market always contend on the same stripe; different
// markets almost always proceed in parallel.
const lockStripes = 64

// Engine matches orders and settles fills. All mutations go through the
// ledger; the engine holds no market state of its own beyond the stripe
// locks that serialize per-market work.
type Engine struct {
	store   ledger.Store
	books   *book.View
	breaker *circuitbreaker.SettlementBreaker
	logger  *zap.Logger

	locks [lockStripes]sync.Mutex

	updates   chan *types.PriceUpdate
	closeOnce sync.Once
}

// Config holds engine configuration.
type Config struct {
	Store   ledger.Store
	Books   *book.View
	Breaker *circuitbreaker.SettlementBreaker
	Logger  *zap.Logger
	// UpdateBufferSize sizes the price update channel. Sends never block;
	// updates are dropped when the buffer is full.
	UpdateBufferSize int
}

// New creates a matching engine.
func New(cfg *Config) *Engine {
	bufferSize := cfg.UpdateBufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	return &Engine{
		store:   cfg.Store,
		books:   cfg.Books,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		updates: make(chan *types.PriceUpdate, bufferSize),
	}
}

// Updates returns the channel of post-fill price updates for downstream
// fan-out.
func (e *Engine) Updates() <-chan *types.PriceUpdate {
	return e.updates
}

// Close closes the update channel. SubmitOrder must not be called after
// Close.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.updates)
	})
	e.logger.Info("engine-closed")
	return nil
}

func (e *Engine) marketLock(marketID int64) *sync.Mutex {
	return &e.locks[uint64(marketID)%lockStripes]
}

// publishUpdate emits a price update without blocking the matching pass.
func (e *Engine) publishUpdate(marketID int64, ticker string, price int) {
	update := &types.PriceUpdate{
		EventID:   uuid.New().String(),
		MarketID:  marketID,
		Ticker:    ticker,
		Price:     price,
		Timestamp: time.Now(),
	}

	select {
	case e.updates <- update:
		UpdatesPublishedTotal.Inc()
	default:
		UpdatesDroppedTotal.Inc()
		e.logger.Warn("price-update-dropped",
			zap.Int64("market-id", marketID),
			zap.Int("buffer-size", cap(e.updates)))
	}
}
