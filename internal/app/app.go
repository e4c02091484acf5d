// Package app wires the ledger, matching engine, services and HTTP server
// together and manages their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/internal/feed"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/internal/simulation"
	"github.com/mercatus-exchange/mercatus/pkg/config"
	"github.com/mercatus-exchange/mercatus/pkg/healthprobe"
	"github.com/mercatus-exchange/mercatus/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	store         ledger.Store
	engine        *engine.Engine
	intake        *intake.Service
	catalog       *catalog.Service
	feedHub       *feed.Hub
	simulator     *simulation.Simulator
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	Seed bool // Seed demo markets and users on startup
}
