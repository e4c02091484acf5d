package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerFailuresTotal counts settlement failures observed by the breaker.
	BreakerFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_breaker_settlement_failures_total",
		Help: "Total number of settlement failures recorded by the breaker",
	})

	// BreakerTripsTotal counts how many times a market was tripped.
	BreakerTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_breaker_trips_total",
		Help: "Total number of times the settlement breaker tripped a market",
	})

	// BreakerTrippedMarkets tracks how many markets are currently paused.
	BreakerTrippedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mercatus_breaker_tripped_markets",
		Help: "Number of markets currently paused by the settlement breaker",
	})
)
