package app

import (
	"context"
	"fmt"

	"github.com/mercatus-exchange/mercatus/internal/book"
	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"github.com/mercatus-exchange/mercatus/internal/circuitbreaker"
	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/internal/feed"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/internal/simulation"
	"github.com/mercatus-exchange/mercatus/pkg/cache"
	"github.com/mercatus-exchange/mercatus/pkg/config"
	"github.com/mercatus-exchange/mercatus/pkg/healthprobe"
	"github.com/mercatus-exchange/mercatus/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	store, err := setupLedger(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	books := book.New(store)

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup circuit breaker: %w", err)
	}

	eng := engine.New(&engine.Config{
		Store:            store,
		Books:            books,
		Breaker:          breaker,
		Logger:           logger,
		UpdateBufferSize: cfg.FeedBufferSize,
	})

	intakeService := intake.New(store, eng, logger)

	catalogService := catalog.New(&catalog.Config{
		Store:    store,
		Books:    books,
		Cache:    marketCache,
		CacheTTL: cfg.MarketListCacheTTL,
		Logger:   logger,
	})

	feedHub := feed.New(&feed.Config{
		Store:             store,
		Updates:           eng.Updates(),
		Logger:            logger,
		ClientBufferSize:  cfg.FeedClientBufferSize,
		HeartbeatInterval: cfg.FeedHeartbeatInterval,
	})

	var simulator *simulation.Simulator
	if cfg.SimEnabled {
		simulator = simulation.New(&simulation.Config{
			Store:         store,
			Intake:        intakeService,
			Logger:        logger,
			Interval:      cfg.SimInterval,
			TradeChance:   cfg.SimTradeChance,
			BotCount:      cfg.SimBotCount,
			BotBalance:    cfg.SimBotBalance,
			MaxQuantity:   cfg.SimMaxQuantity,
			MeanReversion: cfg.SimMeanReversion,
		})
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Intake:        intakeService,
		Catalog:       catalogService,
		Engine:        eng,
		Feed:          feedHub,
	})

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		engine:        eng,
		intake:        intakeService,
		catalog:       catalogService,
		feedHub:       feedHub,
		simulator:     simulator,
		ctx:           ctx,
		cancel:        cancel,
	}

	if opts.Seed {
		err = a.seed(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	return a, nil
}

func setupLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledger.Store, error) {
	if cfg.LedgerMode == "postgres" {
		store, err := ledger.NewPostgresStore(&ledger.PostgresConfig{
			DSN:    cfg.PostgresDSN(),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}

		err = store.Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	}

	return ledger.NewMemoryStore(logger), nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 markets)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}
