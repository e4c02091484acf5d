// Package feed fans committed-fill price updates out to live viewers over
// WebSocket and records each update in the market's price history for
// charts. The engine only publishes events; delivery is this package's job.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mercatus-exchange/mercatus/internal/ledger"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// Hub distributes price updates to connected WebSocket clients.
type Hub struct {
	store             ledger.Store
	updates           <-chan *types.PriceUpdate
	logger            *zap.Logger
	clientBufferSize  int
	heartbeatInterval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}

	ctx context.Context
	wg  sync.WaitGroup

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Config holds feed hub configuration.
type Config struct {
	Store             ledger.Store
	Updates           <-chan *types.PriceUpdate
	Logger            *zap.Logger
	ClientBufferSize  int
	HeartbeatInterval time.Duration
}

// New creates a feed hub.
func New(cfg *Config) *Hub {
	clientBuffer := cfg.ClientBufferSize
	if clientBuffer <= 0 {
		clientBuffer = 64
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	return &Hub{
		store:             cfg.Store,
		updates:           cfg.Updates,
		logger:            cfg.Logger,
		clientBufferSize:  clientBuffer,
		heartbeatInterval: heartbeat,
		clients:           make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin policy is the deployment proxy's concern.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins consuming engine updates. It returns immediately; the
// consume loop runs until the context is cancelled or the update channel
// closes.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx = ctx
	h.logger.Info("feed-hub-starting")

	h.wg.Add(1)
	go h.consumeUpdates()

	return nil
}

func (h *Hub) consumeUpdates() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("feed-hub-stopping")
			return
		case update, ok := <-h.updates:
			if !ok {
				h.logger.Info("feed-update-channel-closed")
				return
			}
			h.handleUpdate(update)
		}
	}
}

func (h *Hub) handleUpdate(update *types.PriceUpdate) {
	UpdatesConsumedTotal.Inc()

	// Price history feeds the chart endpoint; a write failure loses one
	// chart point, not the trade itself, so it only warns.
	err := h.store.AppendPricePoint(h.ctx, update.MarketID, update.Price, update.Timestamp)
	if err != nil {
		h.logger.Warn("price-history-append-failed",
			zap.Int64("market-id", update.MarketID),
			zap.Error(err))
	}

	h.broadcast(&wireMessage{
		Type:      "update",
		EventID:   update.EventID,
		Ticker:    update.Ticker,
		MarketID:  update.MarketID,
		Price:     update.Price,
		Timestamp: update.Timestamp,
	})
}

// wireMessage is the JSON frame sent to feed clients.
type wireMessage struct {
	Type      string            `json:"type"`
	EventID   string            `json:"event_id,omitempty"`
	Ticker    string            `json:"ticker,omitempty"`
	MarketID  int64             `json:"market_id,omitempty"`
	Price     int               `json:"price,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Markets   []*snapshotMarket `json:"markets,omitempty"`
}

type snapshotMarket struct {
	Ticker   string `json:"ticker"`
	MarketID int64  `json:"market_id"`
	Price    int    `json:"price"`
}

func (h *Hub) broadcast(msg *wireMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("feed-marshal-failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
			MessagesSentTotal.Inc()
		default:
			// Slow client: drop the frame rather than stall the hub.
			MessagesDroppedTotal.Inc()
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket feed subscription. The
// client immediately receives a snapshot of current prices for all open
// markets, then an update frame per committed fill.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.clientBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	ClientsConnected.Set(float64(len(h.clients)))
	h.mu.Unlock()

	h.logger.Debug("feed-client-connected", zap.String("remote", conn.RemoteAddr().String()))

	h.sendSnapshot(r.Context(), c)

	h.wg.Add(1)
	go h.writePump(c)
}

func (h *Hub) sendSnapshot(ctx context.Context, c *client) {
	markets, err := h.store.Markets(ctx, ledger.MarketFilter{Status: types.MarketOpen})
	if err != nil {
		h.logger.Warn("feed-snapshot-failed", zap.Error(err))
		return
	}

	snapshot := make([]*snapshotMarket, 0, len(markets))
	for _, m := range markets {
		price := 50
		last, traded, err := h.store.LastTradePrice(ctx, m.ID)
		if err == nil && traded {
			price = last
		}
		snapshot = append(snapshot, &snapshotMarket{
			Ticker:   m.Ticker,
			MarketID: m.ID,
			Price:    price,
		})
	}

	payload, err := json.Marshal(&wireMessage{Type: "snapshot", Markets: snapshot})
	if err != nil {
		h.logger.Error("feed-marshal-failed", zap.Error(err))
		return
	}

	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer func() {
		heartbeat.Stop()
		h.dropClient(c)
	}()

	for {
		select {
		case <-h.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			err := c.conn.WriteMessage(websocket.TextMessage, payload)
			if err != nil {
				h.logger.Debug("feed-client-write-failed", zap.Error(err))
				return
			}
		case <-heartbeat.C:
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) dropClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	ClientsConnected.Set(float64(len(h.clients)))
	h.mu.Unlock()

	_ = c.conn.Close()
}

// History returns a market's price history for charting.
func (h *Hub) History(ctx context.Context, marketID int64, window time.Duration) ([]*types.PricePoint, error) {
	since := time.Now().Add(-window)
	points, err := h.store.PriceHistory(ctx, marketID, since)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []*types.PricePoint{}
	}
	return points, nil
}

// Close waits for the consume loop and client writers to finish.
func (h *Hub) Close() error {
	h.wg.Wait()
	h.logger.Info("feed-hub-closed")
	return nil
}
