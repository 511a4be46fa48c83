package scoring

import (
	"math"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
)

// liveEntry is one emitted opportunity inside the dedup window.
type liveEntry struct {
	opp       *types.MEVOpportunity
	emittedAt time.Time
}

// dedupIndex keeps emitted opportunities keyed by their dedup key for a
// sliding window. A candidate whose key is already live is suppressed
// unless its net profit grew by the re-emit delta. Not safe for concurrent
// use; the scorer serializes access through its run loop and lock.
type dedupIndex struct {
	window  time.Duration
	reEmit  float64
	entries map[string]*liveEntry
}

func newDedupIndex(window time.Duration, reEmitDelta float64) *dedupIndex {
	return &dedupIndex{
		window:  window,
		reEmit:  reEmitDelta,
		entries: make(map[string]*liveEntry),
	}
}

type admitVerdict int

const (
	admitNew admitVerdict = iota
	admitReEmit
	admitSuppress
)

// admit decides whether the candidate passes the dedup window at now.
func (d *dedupIndex) admit(candidate *types.MEVOpportunity, now time.Time) admitVerdict {
	entry, ok := d.entries[candidate.DedupKey]
	if !ok || entry.opp.Invalidated || now.Sub(entry.emittedAt) > d.window {
		return admitNew
	}
	prev := entry.opp.NetProfitUSD
	if prev == 0 {
		if candidate.NetProfitUSD > 0 {
			return admitReEmit
		}
		return admitSuppress
	}
	// Only a profit increase re-emits; a collapse keeps the earlier
	// emission live until the window elapses.
	if (candidate.NetProfitUSD-prev)/math.Abs(prev) >= d.reEmit {
		return admitReEmit
	}
	return admitSuppress
}

func (d *dedupIndex) record(opp *types.MEVOpportunity, now time.Time) {
	d.entries[opp.DedupKey] = &liveEntry{opp: opp, emittedAt: now}
}

// sweep drops entries whose window has elapsed and returns the IDs of the
// expired opportunities.
func (d *dedupIndex) sweep(now time.Time) []string {
	var expired []string
	for key, entry := range d.entries {
		if now.Sub(entry.emittedAt) > d.window {
			expired = append(expired, entry.opp.ID)
			delete(d.entries, key)
		}
	}
	return expired
}

func (d *dedupIndex) len() int { return len(d.entries) }
