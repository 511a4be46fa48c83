package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/state"
)

// degradedStaleRatio is the stale-rejection share of writes between two
// health probes past which the engine reports degraded: the upstream feed
// is replaying or out of order, and detection quality is suspect.
const degradedStaleRatio = 0.5

// HealthHandler reports liveness plus a degradation signal derived from
// the store's rejection counters. Rejections are normal in small numbers;
// a sustained majority of them means trouble upstream.
type HealthHandler struct {
	store *state.Store

	mu            sync.Mutex
	lastStale     int64
	lastDecode    int64
	lastHeight    uint64
	lastProbeTime time.Time
}

func NewHealthHandler(store *state.Store) *HealthHandler {
	return &HealthHandler{store: store, lastProbeTime: time.Now()}
}

// ServeHTTP implements the /health endpoint.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()

	h.mu.Lock()
	staleDelta := stats.StaleRejections - h.lastStale
	decodeDelta := stats.DecodeErrors - h.lastDecode
	progressed := stats.Height > h.lastHeight
	h.lastStale = stats.StaleRejections
	h.lastDecode = stats.DecodeErrors
	h.lastHeight = stats.Height
	h.lastProbeTime = time.Now()
	h.mu.Unlock()

	status := "healthy"
	rejected := staleDelta + decodeDelta
	if rejected > 0 && !progressed {
		// Everything since the last probe bounced and the head is stuck.
		status = "degraded"
	} else if rejected > 10 && float64(staleDelta)/float64(rejected+1) > degradedStaleRatio {
		status = "degraded"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}
