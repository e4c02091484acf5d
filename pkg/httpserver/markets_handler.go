package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mercatus-exchange/mercatus/internal/catalog"
	"github.com/mercatus-exchange/mercatus/internal/feed"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

const defaultHistoryWindow = 24 * time.Hour

// MarketsHandler handles market listing, creation and history requests.
type MarketsHandler struct {
	catalog *catalog.Service
	feed    *feed.Hub
	logger  *zap.Logger
}

// NewMarketsHandler creates a new markets handler.
func NewMarketsHandler(svc *catalog.Service, hub *feed.Hub, logger *zap.Logger) *MarketsHandler {
	return &MarketsHandler{
		catalog: svc,
		feed:    hub,
		logger:  logger,
	}
}

// HandleList handles GET /api/markets?status=<status>&category=<category>.
func (h *MarketsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := ledger.MarketFilter{
		Status:   types.MarketStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
	}

	markets, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, markets)
}

// HandleCreate handles POST /api/markets.
func (h *MarketsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.catalog.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, market)
}

// HandleGet handles GET /api/markets/{ticker}.
func (h *MarketsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	detail, err := h.catalog.Get(r.Context(), ticker)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, detail)
}

// HandleHistory handles GET /api/history/{ticker}?window=<duration>.
func (h *MarketsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	detail, err := h.catalog.Get(r.Context(), ticker)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	window := defaultHistoryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = parsed
	}

	points, err := h.feed.History(r.Context(), detail.Market.ID, window)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, points)
}
