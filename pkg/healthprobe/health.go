// Package healthprobe serves the liveness and readiness endpoints. Liveness
// is unconditional; readiness flips on once the ledger, engine and feed are
// wired and flips off again at the start of shutdown so the load balancer
// drains before connections are torn down.
package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker tracks process readiness for the probe endpoints.
type HealthChecker struct {
	startedAt time.Time
	ready     atomic.Bool
}

// New creates a health checker. The process starts not ready.
func New() *HealthChecker {
	return &HealthChecker{startedAt: time.Now()}
}

// SetReady marks the exchange as ready (or not) to take traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

func writeProbe(w http.ResponseWriter, status int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Health is the liveness handler. It answers 200 for as long as the process
// can serve HTTP at all.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, probeResponse{
			Status: "healthy",
			Uptime: time.Since(h.startedAt).Round(time.Second).String(),
		})
	}
}

// Ready is the readiness handler: 200 once startup has completed, 503
// before that and again once shutdown begins.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "not_ready"})
			return
		}
		writeProbe(w, http.StatusOK, probeResponse{
			Status: "ready",
			Uptime: time.Since(h.startedAt).Round(time.Second).String(),
		})
	}
}
