package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mercatus-exchange/mercatus/internal/intake"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// OrdersHandler handles order placement, listing and cancellation.
type OrdersHandler struct {
	intake *intake.Service
	logger *zap.Logger
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(svc *intake.Service, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		intake: svc,
		logger: logger,
	}
}

type placeOrderRequest struct {
	MarketTicker string `json:"market_ticker"`
	Side         string `json:"side"`
	Price        int    `json:"price"`
	Quantity     int64  `json:"quantity"`
}

// HandlePlace handles POST /api/orders.
func (h *OrdersHandler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, err.Error())
		return
	}

	var req placeOrderRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.intake.PlaceOrder(r.Context(), &intake.PlaceRequest{
		UserID:       userID,
		MarketTicker: req.MarketTicker,
		Side:         types.Side(req.Side),
		Price:        req.Price,
		Quantity:     req.Quantity,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, result)
}

// HandleList handles GET /api/orders?ticker=<ticker>&status=<status>.
func (h *OrdersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, err.Error())
		return
	}

	ticker := r.URL.Query().Get("ticker")
	status := types.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.intake.Orders(r.Context(), userID, ticker, status)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, orders)
}

// HandleCancel handles DELETE /api/orders/{orderID}.
func (h *OrdersHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, err.Error())
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, h.logger, http.StatusBadRequest, "invalid order id")
		return
	}

	err = h.intake.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "cancelled"})
}
