package httpserver

import (
	"net/http"
	"strconv"

	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"go.uber.org/zap"
)

const defaultTradeHistoryLimit = 50

// PortfolioHandler handles balance, position and trade history requests.
type PortfolioHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler.
func NewPortfolioHandler(svc *catalog.Service, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		catalog: svc,
		logger:  logger,
	}
}

// HandlePortfolio handles GET /api/portfolio.
func (h *PortfolioHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, err.Error())
		return
	}

	portfolio, err := h.catalog.Portfolio(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, portfolio)
}

// HandleTradeHistory handles GET /api/portfolio/history?limit=<n>.
func (h *PortfolioHandler) HandleTradeHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, err.Error())
		return
	}

	limit := defaultTradeHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	fills, err := h.catalog.TradeHistory(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, fills)
}
