package simulation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesGeneratedTotal counts crossing bot order pairs submitted.
	TradesGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercatus_simulation_trades_generated_total",
		Help: "Total number of synthetic trades submitted by the simulator",
	})
)
