// Package simulation generates synthetic trading activity so a demo
// deployment looks alive. Bots are ordinary ledger users and their orders
// go through the same intake and matching path as everyone else's.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// tradeQuantityFloor is the smallest bot trade. MaxQuantity is raised to it
// when configured lower.
const tradeQuantityFloor = 10

// Simulator periodically submits bot orders into open markets.
type Simulator struct {
	store  ledger.Store
	intake *intake.Service
	logger *zap.Logger

	runID         string
	interval      time.Duration
	tradeChance   float64
	botCount      int
	botBalance    int64
	maxQuantity   int64
	meanReversion float64

	bots []int64
	rng  *rand.Rand

	done chan struct{}
}

// Config holds simulator configuration.
type Config struct {
	Store         ledger.Store
	Intake        *intake.Service
	Logger        *zap.Logger
	Interval      time.Duration
	TradeChance   float64
	BotCount      int
	BotBalance    int64
	MaxQuantity   int64
	MeanReversion float64
}

// New creates a simulator. Bot users are created (or reused) on Start.
func New(cfg *Config) *Simulator {
	maxQuantity := cfg.MaxQuantity
	if maxQuantity < tradeQuantityFloor {
		maxQuantity = tradeQuantityFloor
	}

	return &Simulator{
		store:         cfg.Store,
		intake:        cfg.Intake,
		logger:        cfg.Logger,
		runID:         uuid.New().String(),
		interval:      cfg.Interval,
		tradeChance:   cfg.TradeChance,
		botCount:      cfg.BotCount,
		botBalance:    cfg.BotBalance,
		maxQuantity:   maxQuantity,
		meanReversion: cfg.MeanReversion,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		done:          make(chan struct{}),
	}
}

// Start provisions bot users and begins the activity loop.
func (s *Simulator) Start(ctx context.Context) error {
	err := s.provisionBots(ctx)
	if err != nil {
		return fmt.Errorf("provision bots: %w", err)
	}

	s.logger.Info("simulation-starting",
		zap.String("run-id", s.runID),
		zap.Int("bots", len(s.bots)),
		zap.Duration("interval", s.interval))

	go s.loop(ctx)
	return nil
}

func (s *Simulator) provisionBots(ctx context.Context) error {
	for i := 1; i <= s.botCount; i++ {
		email := fmt.Sprintf("bot%d@mercatus.local", i)

		existing, err := s.store.UserByEmail(ctx, email)
		if err == nil {
			s.bots = append(s.bots, existing.ID)
			continue
		}
		if !errors.Is(err, types.ErrUserNotFound) {
			return err
		}

		bot := &types.User{Email: email, Balance: s.botBalance}
		err = s.store.CreateUser(ctx, bot)
		if err != nil {
			return err
		}
		s.bots = append(s.bots, bot.ID)
	}
	return nil
}

func (s *Simulator) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation-stopping", zap.String("run-id", s.runID))
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	markets, err := s.store.Markets(ctx, ledger.MarketFilter{Status: types.MarketOpen})
	if err != nil {
		s.logger.Warn("simulation-list-markets-failed", zap.Error(err))
		return
	}

	for _, market := range markets {
		if s.rng.Float64() >= s.tradeChance {
			continue
		}
		s.simulateTrade(ctx, market)
	}
}

// simulateTrade posts a crossing pair of bot orders: a resting order on one
// side and an opposing order at the complementary price, which the engine
// matches immediately. Both go through real intake, so bots obey the same
// balance and price rules as users.
func (s *Simulator) simulateTrade(ctx context.Context, market *types.Market) {
	price := s.nextPrice(ctx, market.ID)
	side := types.SideYes
	if s.rng.Intn(2) == 0 {
		side = types.SideNo
	}
	quantity := s.rng.Int63n(s.maxQuantity-tradeQuantityFloor+1) + tradeQuantityFloor

	maker, taker := s.pickBotPair()

	makerPrice := price
	if side == types.SideNo {
		makerPrice = 100 - price
	}

	_, err := s.intake.PlaceOrder(ctx, &intake.PlaceRequest{
		UserID:       maker,
		MarketTicker: market.Ticker,
		Side:         side,
		Price:        makerPrice,
		Quantity:     quantity,
	})
	if err != nil {
		s.logger.Debug("simulation-maker-order-rejected",
			zap.String("ticker", market.Ticker),
			zap.Error(err))
		return
	}

	_, err = s.intake.PlaceOrder(ctx, &intake.PlaceRequest{
		UserID:       taker,
		MarketTicker: market.Ticker,
		Side:         side.Opposite(),
		Price:        100 - makerPrice,
		Quantity:     quantity,
	})
	if err != nil {
		s.logger.Debug("simulation-taker-order-rejected",
			zap.String("ticker", market.Ticker),
			zap.Error(err))
		return
	}

	TradesGeneratedTotal.Inc()
}

// nextPrice walks the market's last trade price with mean reversion toward
// 50, clamped to the valid price range.
func (s *Simulator) nextPrice(ctx context.Context, marketID int64) int {
	current := 50
	last, traded, err := s.store.LastTradePrice(ctx, marketID)
	if err == nil && traded {
		current = last
	}

	drift := float64(50-current) * s.meanReversion
	noise := (s.rng.Float64() - 0.5) * 8 // random walk, up to ±4 cents
	next := current + int(drift+noise)

	if next < types.MinPrice {
		next = types.MinPrice
	}
	if next > types.MaxPrice {
		next = types.MaxPrice
	}
	return next
}

func (s *Simulator) pickBotPair() (int64, int64) {
	maker := s.bots[s.rng.Intn(len(s.bots))]
	taker := s.bots[s.rng.Intn(len(s.bots))]
	for taker == maker && len(s.bots) > 1 {
		taker = s.bots[s.rng.Intn(len(s.bots))]
	}
	return maker, taker
}

// Close waits for the activity loop to exit.
func (s *Simulator) Close() error {
	<-s.done
	s.logger.Info("simulation-closed", zap.String("run-id", s.runID))
	return nil
}
