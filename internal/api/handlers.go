package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/mempool"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handlers serves the read API over the live engine state.
type Handlers struct {
	log     *zap.Logger
	store   *state.Store
	scorer  interfaces.Scorer
	pending *mempool.PendingPool
	hub     *WebSocketHub
	started time.Time
}

func NewHandlers(store *state.Store, scorer interfaces.Scorer, pending *mempool.PendingPool, hub *WebSocketHub, log *zap.Logger) *Handlers {
	return &Handlers{
		log:     log,
		store:   store,
		scorer:  scorer,
		pending: pending,
		hub:     hub,
		started: time.Now(),
	}
}

// GetOpportunities returns the live ranked set. Query parameters: limit
// caps the result, type filters by opportunity type.
func (h *Handlers) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	ranked := h.scorer.Ranked(0)
	if typ := r.URL.Query().Get("type"); typ != "" {
		filtered := ranked[:0]
		for _, opp := range ranked {
			if string(opp.Type) == typ {
				filtered = append(filtered, opp)
			}
		}
		ranked = filtered
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": ranked,
		"count":         len(ranked),
		"timestamp":     time.Now(),
	})
}

// GetOpportunityByID returns a single opportunity, invalidated or not.
func (h *Handlers) GetOpportunityByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	opp, ok := h.scorer.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	h.writeJSON(w, http.StatusOK, opp)
}

// SystemStatus is the aggregate health view of the engine.
type SystemStatus struct {
	Status           string                 `json:"status"`
	UptimeSeconds    float64                `json:"uptimeSeconds"`
	HeadHeight       uint64                 `json:"headHeight"`
	HeadHash         string                 `json:"headHash"`
	Store            interfaces.StoreStats  `json:"store"`
	Scorer           interfaces.ScorerStats `json:"scorer"`
	PendingTxs       int                    `json:"pendingTxs"`
	WebSocketClients int                    `json:"websocketClients"`
	Timestamp        time.Time              `json:"timestamp"`
}

// GetStatus returns the engine status snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	height, hash := h.store.Head()
	h.writeJSON(w, http.StatusOK, SystemStatus{
		Status:           "running",
		UptimeSeconds:    time.Since(h.started).Seconds(),
		HeadHeight:       height,
		HeadHash:         hash.Hex(),
		Store:            h.store.Stats(),
		Scorer:           h.scorer.Stats(),
		PendingTxs:       h.pending.Size(),
		WebSocketClients: h.hub.ClientCount(),
		Timestamp:        time.Now(),
	})
}

// GetPendingTransaction returns one mempool entry by hash.
func (h *Handlers) GetPendingTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["hash"]
	tx, ok := h.pending.Get(common.HexToHash(id))
	if !ok {
		h.writeError(w, http.StatusNotFound, "pending transaction not found")
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
