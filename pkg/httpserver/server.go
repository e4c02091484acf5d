// Package httpserver exposes the trading API, the market data feed and the
// operational endpoints over HTTP.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/internal/feed"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/pkg/healthprobe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides the HTTP API plus metrics and health checks.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Intake        *intake.Service
	Catalog       *catalog.Service
	Engine        *engine.Engine
	Feed          *feed.Hub
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Operational routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	// Trading API
	orders := NewOrdersHandler(cfg.Intake, cfg.Logger)
	markets := NewMarketsHandler(cfg.Catalog, cfg.Feed, cfg.Logger)
	portfolio := NewPortfolioHandler(cfg.Catalog, cfg.Logger)
	admin := NewAdminHandler(cfg.Catalog, cfg.Engine, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", orders.HandlePlace)
		r.Get("/orders", orders.HandleList)
		r.Delete("/orders/{orderID}", orders.HandleCancel)

		r.Get("/markets", markets.HandleList)
		r.Post("/markets", markets.HandleCreate)
		r.Get("/markets/{ticker}", markets.HandleGet)
		r.Get("/history/{ticker}", markets.HandleHistory)

		r.Get("/portfolio", portfolio.HandlePortfolio)
		r.Get("/portfolio/history", portfolio.HandleTradeHistory)

		r.Post("/admin/resolve", admin.HandleResolve)
	})

	// Live price feed
	if cfg.Feed != nil {
		r.Get("/ws", cfg.Feed.HandleWS)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
