package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// OrdersSubmittedTotal counts orders entering the matching engine by side.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercatus_engine_orders_submitted_total",
			Help: "Total number of orders submitted to the matching engine",
		},
		[]string{"side"},
	)

	// FillsCommittedTotal counts successfully settled fills.
	FillsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_fills_committed_total",
		Help: "Total number of fills committed to the ledger",
	})

	// FillFailuresTotal counts fills abandoned due to settlement errors.
	FillFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_fill_failures_total",
		Help: "Total number of candidate fills abandoned due to settlement errors",
	})

	// ContractsTradedTotal counts total contracts exchanged.
	ContractsTradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_contracts_traded_total",
		Help: "Total number of contracts traded",
	})

	// MatchPassDuration tracks the duration of a full matching pass.
	MatchPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mercatus_engine_match_pass_duration_seconds",
		Help:    "Duration of a full matching pass for one order",
		Buckets: prometheus.DefBuckets,
	})

	// SettlementDuration tracks the duration of one fill settlement.
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mercatus_engine_settlement_duration_seconds",
		Help:    "Duration of one atomic fill settlement",
		Buckets: prometheus.DefBuckets,
	})

	// MarketsResolvedTotal counts settled markets.
	MarketsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_markets_resolved_total",
		Help: "Total number of markets resolved",
	})

	// ResolutionPayoutCents counts cents paid out to winning positions.
	ResolutionPayoutCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_resolution_payout_cents_total",
		Help: "Total cents paid out to winning positions at resolution",
	})

	// UpdatesPublishedTotal counts price updates published to the feed.
	UpdatesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_price_updates_published_total",
		Help: "Total number of price updates published",
	})

	// UpdatesDroppedTotal counts price updates dropped on a full buffer.
	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_engine_price_updates_dropped_total",
		Help: "Total number of price updates dropped because the buffer was full",
	})
)
