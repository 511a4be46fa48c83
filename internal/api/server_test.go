package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/internal/config"
	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/mempool"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScorer struct {
	ranked []*types.MEVOpportunity
}

func (f *fakeScorer) Offer(*types.MEVOpportunity) bool { return true }

func (f *fakeScorer) Ranked(limit int) []*types.MEVOpportunity {
	if limit > 0 && len(f.ranked) > limit {
		return f.ranked[:limit]
	}
	return f.ranked
}

func (f *fakeScorer) Get(id string) (*types.MEVOpportunity, bool) {
	for _, opp := range f.ranked {
		if opp.ID == id {
			return opp, true
		}
	}
	return nil, false
}

func (f *fakeScorer) Invalidate(uint64)           {}
func (f *fakeScorer) Start(context.Context) error { return nil }
func (f *fakeScorer) Stop(context.Context) error  { return nil }
func (f *fakeScorer) Stats() interfaces.ScorerStats {
	return interfaces.ScorerStats{Live: len(f.ranked)}
}

func newTestServer(t *testing.T, apiKey string, opps ...*types.MEVOpportunity) *Server {
	t.Helper()
	log := zap.NewNop()
	store := state.NewStore(log, nil, 0)
	pending := mempool.NewPendingPool(log, time.Minute)
	hub := NewWebSocketHub(log)
	handlers := NewHandlers(store, &fakeScorer{ranked: opps}, pending, hub, log)
	return NewServer(config.ServerConfig{
		Host:      "127.0.0.1",
		Port:      0,
		APIKey:    apiKey,
		RateLimit: 100_000,
	}, handlers, hub, log)
}

func opportunity(id string, typ types.OpportunityType, net float64) *types.MEVOpportunity {
	return &types.MEVOpportunity{
		ID:           id,
		Type:         typ,
		NetProfitUSD: net,
		Confidence:   0.8,
		DetectedAt:   time.Now(),
	}
}

func TestServerListOpportunities(t *testing.T) {
	srv := newTestServer(t, "",
		opportunity("a", types.OpportunityArbitrage, 100),
		opportunity("b", types.OpportunitySandwich, 50),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count         int                     `json:"count"`
		Opportunities []*types.MEVOpportunity `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestServerFiltersByTypeAndLimit(t *testing.T) {
	srv := newTestServer(t, "",
		opportunity("a", types.OpportunityArbitrage, 100),
		opportunity("b", types.OpportunitySandwich, 50),
		opportunity("c", types.OpportunityArbitrage, 25),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities?type=arbitrage&limit=1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestServerGetOpportunityByID(t *testing.T) {
	srv := newTestServer(t, "", opportunity("a", types.OpportunityArbitrage, 100))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerAuthRequired(t *testing.T) {
	srv := newTestServer(t, "secret", opportunity("a", types.OpportunityArbitrage, 100))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerStatusPayload(t *testing.T) {
	srv := newTestServer(t, "", opportunity("a", types.OpportunityArbitrage, 100))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 1, status.Scorer.Live)
}

func TestServerRateLimiting(t *testing.T) {
	log := zap.NewNop()
	store := state.NewStore(log, nil, 0)
	pending := mempool.NewPendingPool(log, time.Minute)
	hub := NewWebSocketHub(log)
	handlers := NewHandlers(store, &fakeScorer{}, pending, hub, log)
	srv := NewServer(config.ServerConfig{RateLimit: 5}, handlers, hub, log)

	var limited bool
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		srv.Router().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}

func TestServerInvalidLimitRejected(t *testing.T) {
	srv := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities?limit=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
