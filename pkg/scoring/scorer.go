// Package scoring is the back half of the detection pipeline: it
// normalizes candidates from the detectors, applies the global profit and
// confidence filters, collapses duplicates over a sliding window, and
// serves the live set ranked for consumers.
package scoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/metrics"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the scoring pipeline.
type Config struct {
	// MinNetProfitUSD drops candidates below this net profit.
	MinNetProfitUSD float64
	// MinConfidence drops candidates below this confidence.
	MinConfidence float64
	// MaxCandidateAge drops candidates detected too long before scoring;
	// the state they priced against is already gone.
	MaxCandidateAge time.Duration
	// DedupWindow is how long an emitted opportunity suppresses
	// duplicates and stays in the live ranked set.
	DedupWindow time.Duration
	// ReEmitDelta is the relative net profit change that re-emits a
	// duplicate inside the window.
	ReEmitDelta float64
	// IntakeBuffer sizes the bounded intake channel.
	IntakeBuffer int
	// OfferTimeout is how long Offer blocks under backpressure before
	// dropping the candidate.
	OfferTimeout time.Duration
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		MinNetProfitUSD: 10,
		MinConfidence:   0.1,
		MaxCandidateAge: 5 * time.Second,
		DedupWindow:     30 * time.Second,
		ReEmitDelta:     0.10,
		IntakeBuffer:    1024,
		OfferTimeout:    5 * time.Millisecond,
	}
}

// Scorer implements interfaces.Scorer. Candidates enter through a bounded
// channel and are processed by a single run loop, so the dedup index needs
// no locking of its own; the live set is guarded for concurrent readers.
type Scorer struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Collector
	sinks   []interfaces.OpportunitySink

	intake chan *types.MEVOpportunity

	mu    sync.RWMutex
	byID  map[string]*types.MEVOpportunity
	dedup *dedupIndex

	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool

	accepted    atomic.Int64
	emitted     atomic.Int64
	suppressed  atomic.Int64
	filtered    atomic.Int64
	overflow    atomic.Int64
	invalidated atomic.Int64
}

// NewScorer creates a scorer; zero config fields fall back to defaults.
// Sinks receive every emitted opportunity; a sink error is logged and never
// blocks the pipeline.
func NewScorer(cfg Config, sinks []interfaces.OpportunitySink, collector *metrics.Collector, log *zap.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxCandidateAge <= 0 {
		cfg.MaxCandidateAge = def.MaxCandidateAge
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	if cfg.ReEmitDelta <= 0 {
		cfg.ReEmitDelta = def.ReEmitDelta
	}
	if cfg.IntakeBuffer <= 0 {
		cfg.IntakeBuffer = def.IntakeBuffer
	}
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = def.OfferTimeout
	}
	return &Scorer{
		cfg:     cfg,
		log:     log,
		metrics: collector,
		sinks:   sinks,
		intake:  make(chan *types.MEVOpportunity, cfg.IntakeBuffer),
		byID:    make(map[string]*types.MEVOpportunity),
		dedup:   newDedupIndex(cfg.DedupWindow, cfg.ReEmitDelta),
	}
}

// Start launches the run loop.
func (s *Scorer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scorer already started")
	}
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.done = make(chan struct{})
	go s.run()
	s.log.Info("scorer started",
		zap.Float64("min_net_profit_usd", s.cfg.MinNetProfitUSD),
		zap.Duration("dedup_window", s.cfg.DedupWindow),
		zap.Int("sinks", len(s.sinks)))
	return nil
}

// Stop halts the run loop and waits for it to drain.
func (s *Scorer) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer implements interfaces.Scorer. It blocks for at most the configured
// offer timeout; past that the candidate is dropped and counted.
func (s *Scorer) Offer(candidate *types.MEVOpportunity) bool {
	if candidate == nil {
		return false
	}
	select {
	case s.intake <- candidate:
		return true
	default:
	}
	timer := time.NewTimer(s.cfg.OfferTimeout)
	defer timer.Stop()
	select {
	case s.intake <- candidate:
		return true
	case <-timer.C:
		s.overflow.Add(1)
		if s.metrics != nil {
			s.metrics.IncOverflowDrop()
		}
		s.log.Warn("scorer intake overflow, candidate dropped",
			zap.String("type", string(candidate.Type)))
		return false
	}
}

func (s *Scorer) run() {
	defer close(s.done)
	janitor := time.NewTicker(s.cfg.DedupWindow / 4)
	defer janitor.Stop()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case candidate := <-s.intake:
			s.process(candidate)
		case now := <-janitor.C:
			s.expire(now)
		}
	}
}

// process runs one candidate through normalize, filter, dedup, emit.
func (s *Scorer) process(candidate *types.MEVOpportunity) {
	s.accepted.Add(1)
	if s.metrics != nil {
		s.metrics.IncCandidate(string(candidate.Type))
	}

	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.DedupKey == "" {
		candidate.DedupKey = types.ComputeDedupKey(candidate.Type, candidate.InvolvedIDs)
	}

	now := time.Now()
	if candidate.NetProfitUSD < s.cfg.MinNetProfitUSD ||
		candidate.Confidence < s.cfg.MinConfidence ||
		now.Sub(candidate.DetectedAt) > s.cfg.MaxCandidateAge {
		s.filtered.Add(1)
		if s.metrics != nil {
			s.metrics.IncFiltered()
		}
		return
	}

	s.mu.Lock()
	verdict := s.dedup.admit(candidate, now)
	if verdict == admitSuppress {
		s.mu.Unlock()
		s.suppressed.Add(1)
		if s.metrics != nil {
			s.metrics.IncSuppressed()
		}
		return
	}
	s.dedup.record(candidate, now)
	s.byID[candidate.ID] = candidate
	live := s.dedup.len()
	s.mu.Unlock()

	s.emitted.Add(1)
	if s.metrics != nil {
		s.metrics.IncEmitted(string(candidate.Type))
		s.metrics.SetLiveOpportunities(live)
	}
	s.log.Info("opportunity emitted",
		zap.String("id", candidate.ID),
		zap.String("type", string(candidate.Type)),
		zap.Float64("net_profit_usd", candidate.NetProfitUSD),
		zap.Float64("confidence", candidate.Confidence),
		zap.Bool("re_emit", verdict == admitReEmit))

	for _, sink := range s.sinks {
		if err := sink.Publish(s.runCtx, candidate); err != nil {
			s.log.Error("sink publish failed",
				zap.String("sink", sink.Name()),
				zap.String("id", candidate.ID),
				zap.Error(err))
		}
	}
}

// expire removes opportunities whose dedup window has elapsed from the
// live set.
func (s *Scorer) expire(now time.Time) {
	s.mu.Lock()
	for _, id := range s.dedup.sweep(now) {
		delete(s.byID, id)
	}
	live := s.dedup.len()
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetLiveOpportunities(live)
	}
}

// Ranked implements interfaces.Scorer.
func (s *Scorer) Ranked(limit int) []*types.MEVOpportunity {
	s.mu.RLock()
	out := make([]*types.MEVOpportunity, 0, len(s.byID))
	for _, opp := range s.byID {
		if !opp.Invalidated {
			out = append(out, opp)
		}
	}
	s.mu.RUnlock()

	sortRanked(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get implements interfaces.Scorer. Invalidated records stay addressable
// so consumers can observe the flag flip.
func (s *Scorer) Get(id string) (*types.MEVOpportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opp, ok := s.byID[id]
	return opp, ok
}

// Invalidate implements interfaces.Scorer: every live opportunity sourced
// at or above height is flagged non-canonical after a reorg.
func (s *Scorer) Invalidate(height uint64) {
	var hit int
	s.mu.Lock()
	for _, opp := range s.byID {
		if !opp.Invalidated && opp.SourceBlockHeight >= height {
			opp.Invalidated = true
			hit++
		}
	}
	s.mu.Unlock()
	if hit == 0 {
		return
	}
	s.invalidated.Add(int64(hit))
	if s.metrics != nil {
		s.metrics.IncInvalidated(hit)
	}
	s.log.Warn("opportunities invalidated by reorg",
		zap.Uint64("height", height),
		zap.Int("count", hit))
}

// Stats implements interfaces.Scorer.
func (s *Scorer) Stats() interfaces.ScorerStats {
	s.mu.RLock()
	live := 0
	for _, opp := range s.byID {
		if !opp.Invalidated {
			live++
		}
	}
	s.mu.RUnlock()
	return interfaces.ScorerStats{
		Accepted:      s.accepted.Load(),
		Emitted:       s.emitted.Load(),
		Suppressed:    s.suppressed.Load(),
		Filtered:      s.filtered.Load(),
		OverflowDrops: s.overflow.Load(),
		Invalidated:   s.invalidated.Load(),
		Live:          live,
	}
}
