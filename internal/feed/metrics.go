package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// UpdatesConsumedTotal counts price updates consumed from the engine.
	UpdatesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_feed_updates_consumed_total",
		Help: "Total number of price updates consumed from the engine",
	})

	// ClientsConnected tracks connected WebSocket clients.
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mercatus_feed_clients_connected",
		Help: "Number of WebSocket clients currently connected",
	})

	// MessagesSentTotal counts frames queued to clients.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_feed_messages_sent_total",
		Help: "Total number of frames queued to feed clients",
	})

	// MessagesDroppedTotal counts frames dropped for slow clients.
	MessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_feed_messages_dropped_total",
		Help: "Total number of frames dropped because a client buffer was full",
	})
)
