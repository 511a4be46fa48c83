package strategy

import (
	"sort"
	"sync"
)

// DefaultGasWindowSize bounds the per-pool sample window.
const DefaultGasWindowSize = 256

// GasWindow keeps a sliding window of observed gas prices per pool and
// answers percentile-rank queries. A victim offering a gas price high in
// its pool's recent distribution is likely already targeted by competing
// bots, which the sandwich detector turns into a confidence penalty.
type GasWindow struct {
	mu     sync.RWMutex
	size   int
	byPool map[string][]float64
}

// NewGasWindow creates a window; size <= 0 uses the default.
func NewGasWindow(size int) *GasWindow {
	if size <= 0 {
		size = DefaultGasWindowSize
	}
	return &GasWindow{size: size, byPool: make(map[string][]float64)}
}

// Observe records a gas price seen for a pool's pending traffic.
func (w *GasWindow) Observe(poolID string, gasPriceGwei float64) {
	if gasPriceGwei <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	samples := append(w.byPool[poolID], gasPriceGwei)
	if len(samples) > w.size {
		samples = samples[len(samples)-w.size:]
	}
	w.byPool[poolID] = samples
}

// PercentileRank returns the fraction of recent observations for the pool
// at or below the given gas price, in [0, 1]. With no samples it returns 0
// (no competition signal).
func (w *GasWindow) PercentileRank(poolID string, gasPriceGwei float64) float64 {
	w.mu.RLock()
	samples := w.byPool[poolID]
	w.mu.RUnlock()
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	n := sort.SearchFloat64s(sorted, gasPriceGwei)
	// Count equal samples as below-or-at.
	for n < len(sorted) && sorted[n] <= gasPriceGwei {
		n++
	}
	return float64(n) / float64(len(sorted))
}

// Samples returns how many observations the pool's window holds.
func (w *GasWindow) Samples(poolID string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byPool[poolID])
}
