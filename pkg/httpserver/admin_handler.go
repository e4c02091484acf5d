package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"github.com/mercatus-exchange/mercatus/internal/engine"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// AdminHandler handles market resolution.
type AdminHandler struct {
	catalog *catalog.Service
	engine  *engine.Engine
	logger  *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *catalog.Service, eng *engine.Engine, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		catalog: svc,
		engine:  eng,
		logger:  logger,
	}
}

type resolveRequest struct {
	Ticker  string `json:"ticker"`
	Outcome string `json:"outcome"`
}

// HandleResolve handles POST /api/admin/resolve.
func (h *AdminHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, err := h.catalog.Get(r.Context(), req.Ticker)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	err = h.engine.ResolveMarket(r.Context(), detail.Market.ID, types.Side(req.Outcome))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("market-resolved",
		zap.String("ticker", req.Ticker),
		zap.String("outcome", req.Outcome))

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"ticker":  req.Ticker,
		"outcome": req.Outcome,
		"status":  "settled",
	})
}
