package interfaces

import (
	"context"

	"github.com/VrindaBansal/mevscope/pkg/types"
)

// Scorer normalizes, filters, deduplicates, and ranks candidate
// opportunities. Offer is the bounded intake used by detector tasks: it
// blocks briefly under backpressure and then drops, recording the overflow.
type Scorer interface {
	// Offer hands a candidate to the scoring pipeline. Returns false when
	// the candidate was dropped due to intake overflow.
	Offer(candidate *types.MEVOpportunity) bool

	// Ranked returns surviving opportunities ordered by net profit
	// descending, confidence descending, then detection time ascending.
	// limit <= 0 returns all.
	Ranked(limit int) []*types.MEVOpportunity

	// Get returns an emitted opportunity by ID.
	Get(id string) (*types.MEVOpportunity, bool)

	// Invalidate marks every live opportunity sourced at or above the
	// given height as non-canonical. Invalidated records are excluded
	// from Ranked.
	Invalidate(height uint64)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Stats() ScorerStats
}

// ScorerStats summarizes scoring pipeline activity.
type ScorerStats struct {
	Accepted      int64 `json:"accepted"`
	Emitted       int64 `json:"emitted"`
	Suppressed    int64 `json:"suppressed"`
	Filtered      int64 `json:"filtered"`
	OverflowDrops int64 `json:"overflowDrops"`
	Invalidated   int64 `json:"invalidated"`
	Live          int   `json:"live"`
}
