package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	mu   sync.Mutex
	seen []*types.MEVOpportunity
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Publish(_ context.Context, opp *types.MEVOpportunity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, opp)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func candidate(net, confidence float64, height uint64, ids ...string) *types.MEVOpportunity {
	return &types.MEVOpportunity{
		Type:              types.OpportunityArbitrage,
		InvolvedIDs:       ids,
		NetProfitUSD:      net,
		GrossProfitUSD:    net + 10,
		GasCostUSD:        10,
		Confidence:        confidence,
		DetectedAt:        time.Now(),
		SourceBlockHeight: height,
	}
}

func newTestScorer(cfg Config, sinks ...interfaces.OpportunitySink) *Scorer {
	return NewScorer(cfg, sinks, nil, zap.NewNop())
}

func TestScorerEmitAssignsIdentity(t *testing.T) {
	sink := &captureSink{}
	s := newTestScorer(Config{MinNetProfitUSD: 10}, sink)
	s.runCtx = context.Background()

	s.process(candidate(50, 0.9, 7, "p1", "p2"))

	ranked := s.Ranked(0)
	require.Len(t, ranked, 1)
	assert.NotEmpty(t, ranked[0].ID)
	assert.Equal(t, types.ComputeDedupKey(types.OpportunityArbitrage, []string{"p1", "p2"}), ranked[0].DedupKey)
	assert.Equal(t, 1, sink.count())

	got, ok := s.Get(ranked[0].ID)
	require.True(t, ok)
	assert.Same(t, ranked[0], got)
}

func TestScorerGlobalFilters(t *testing.T) {
	tests := []struct {
		name string
		opp  *types.MEVOpportunity
	}{
		{"below min profit", candidate(5, 0.9, 7, "a")},
		{"below min confidence", candidate(50, 0.05, 7, "a")},
		{"too old", func() *types.MEVOpportunity {
			o := candidate(50, 0.9, 7, "a")
			o.DetectedAt = time.Now().Add(-time.Minute)
			return o
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer(Config{MinNetProfitUSD: 10})
			s.runCtx = context.Background()
			s.process(tt.opp)
			assert.Empty(t, s.Ranked(0))
			assert.Equal(t, int64(1), s.Stats().Filtered)
		})
	}
}

func TestScorerSuppressesDuplicates(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10})
	s.runCtx = context.Background()

	s.process(candidate(100, 0.9, 7, "p1", "p2"))
	// Same route, profit within the 10% re-emit gate.
	s.process(candidate(105, 0.9, 7, "p2", "p1"))

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Emitted)
	assert.Equal(t, int64(1), stats.Suppressed)
	assert.Len(t, s.Ranked(0), 1)
}

func TestScorerReEmitsOnMaterialDelta(t *testing.T) {
	sink := &captureSink{}
	s := newTestScorer(Config{MinNetProfitUSD: 10}, sink)
	s.runCtx = context.Background()

	s.process(candidate(100, 0.9, 7, "p1", "p2"))
	s.process(candidate(150, 0.9, 7, "p1", "p2"))

	assert.Equal(t, int64(2), s.Stats().Emitted)
	assert.Equal(t, 2, sink.count())
}

func TestScorerSuppressesCollapsedDuplicate(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10})
	s.runCtx = context.Background()

	s.process(candidate(100, 0.9, 7, "p1", "p2"))
	// Profit collapsed by half; only an increase past the gate re-emits.
	s.process(candidate(50, 0.9, 7, "p1", "p2"))

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Emitted)
	assert.Equal(t, int64(1), stats.Suppressed)
}

func TestScorerRankingOrder(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10})
	s.runCtx = context.Background()

	early := time.Now().Add(-time.Second)
	a := candidate(100, 0.5, 7, "a")
	b := candidate(200, 0.5, 7, "b")
	c := candidate(100, 0.9, 7, "c")
	d := candidate(100, 0.9, 7, "d")
	d.DetectedAt = early

	for _, opp := range []*types.MEVOpportunity{a, b, c, d} {
		s.process(opp)
	}

	ranked := s.Ranked(0)
	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"b"}, ranked[0].InvolvedIDs)
	assert.Equal(t, []string{"d"}, ranked[1].InvolvedIDs) // earlier at equal profit+confidence
	assert.Equal(t, []string{"c"}, ranked[2].InvolvedIDs)
	assert.Equal(t, []string{"a"}, ranked[3].InvolvedIDs)

	assert.Len(t, s.Ranked(2), 2)
}

func TestScorerInvalidateByHeight(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10})
	s.runCtx = context.Background()

	s.process(candidate(100, 0.9, 5, "a"))
	s.process(candidate(100, 0.9, 9, "b"))
	all := s.Ranked(0)
	require.Len(t, all, 2)
	var orphanedID string
	for _, opp := range all {
		if opp.SourceBlockHeight == 9 {
			orphanedID = opp.ID
		}
	}

	s.Invalidate(8)

	ranked := s.Ranked(0)
	require.Len(t, ranked, 1)
	assert.Equal(t, []string{"a"}, ranked[0].InvolvedIDs)
	assert.Equal(t, int64(1), s.Stats().Invalidated)

	// Invalidated records stay addressable with the flag set.
	got, ok := s.Get(orphanedID)
	require.True(t, ok)
	assert.True(t, got.Invalidated)

	// A fresh candidate on the invalidated route is new, not a duplicate.
	s.process(candidate(100, 0.9, 10, "b"))
	assert.Equal(t, int64(3), s.Stats().Emitted)
}

func TestScorerWindowExpiry(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10, DedupWindow: 50 * time.Millisecond})
	s.runCtx = context.Background()

	s.process(candidate(100, 0.9, 7, "a"))
	require.Len(t, s.Ranked(0), 1)

	s.expire(time.Now().Add(time.Second))
	assert.Empty(t, s.Ranked(0))

	// Out of the window, the same route emits again.
	s.process(candidate(100, 0.9, 7, "a"))
	assert.Equal(t, int64(2), s.Stats().Emitted)
}

func TestScorerOfferOverflowDrops(t *testing.T) {
	s := newTestScorer(Config{MinNetProfitUSD: 10, IntakeBuffer: 1, OfferTimeout: time.Millisecond})

	assert.True(t, s.Offer(candidate(100, 0.9, 7, "a")))
	// Nothing drains the intake; the second offer must drop.
	assert.False(t, s.Offer(candidate(100, 0.9, 7, "b")))
	assert.Equal(t, int64(1), s.Stats().OverflowDrops)
}

func TestScorerStartStop(t *testing.T) {
	sink := &captureSink{}
	s := newTestScorer(Config{MinNetProfitUSD: 10}, sink)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	require.True(t, s.Offer(candidate(100, 0.9, 7, "a")))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
