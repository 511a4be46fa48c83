// Package mempool tracks pending transactions with decoded swap intents.
// Entries are transient: confirmed or dropped transactions are evicted
// immediately, the rest age out after a short TTL, and an evicted
// transaction can never produce new opportunities.
package mempool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long an unconfirmed transaction stays eligible.
const DefaultTTL = 90 * time.Second

// PendingPool is a TTL-bounded index of live pending transactions.
type PendingPool struct {
	log *zap.Logger
	ttl time.Duration

	txs  *xsync.Map[common.Hash, *types.PendingTransaction]
	size atomic.Int64

	evictedExpired   atomic.Int64
	evictedConfirmed atomic.Int64
	evictedDropped   atomic.Int64
}

// Stats summarizes pool occupancy and eviction activity.
type Stats struct {
	Size             int   `json:"size"`
	EvictedExpired   int64 `json:"evictedExpired"`
	EvictedConfirmed int64 `json:"evictedConfirmed"`
	EvictedDropped   int64 `json:"evictedDropped"`
}

// NewPendingPool creates a pool; ttl <= 0 uses the default.
func NewPendingPool(log *zap.Logger, ttl time.Duration) *PendingPool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PendingPool{
		log: log,
		ttl: ttl,
		txs: xsync.NewMap[common.Hash, *types.PendingTransaction](),
	}
}

// Add tracks a newly observed pending transaction. Re-observations of the
// same hash keep the original observation time.
func (p *PendingPool) Add(tx *types.PendingTransaction) {
	if tx == nil {
		return
	}
	if tx.ObservedAt.IsZero() {
		tx.ObservedAt = time.Now()
	}
	if _, loaded := p.txs.LoadOrStore(tx.TxID, tx); !loaded {
		p.size.Add(1)
	}
}

// Get returns a live (non-expired) pending transaction.
func (p *PendingPool) Get(txID common.Hash) (*types.PendingTransaction, bool) {
	tx, ok := p.txs.Load(txID)
	if !ok {
		return nil, false
	}
	if time.Since(tx.ObservedAt) > p.ttl {
		p.remove(txID)
		p.evictedExpired.Add(1)
		return nil, false
	}
	return tx, true
}

// MarkConfirmed evicts a transaction that landed on chain.
func (p *PendingPool) MarkConfirmed(txID common.Hash) {
	if p.remove(txID) {
		p.evictedConfirmed.Add(1)
	}
}

// MarkDropped evicts a transaction that left the mempool unconfirmed.
func (p *PendingPool) MarkDropped(txID common.Hash) {
	if p.remove(txID) {
		p.evictedDropped.Add(1)
	}
}

// Size returns the number of tracked transactions.
func (p *PendingPool) Size() int {
	return int(p.size.Load())
}

// Stats returns occupancy and per-reason eviction counters.
func (p *PendingPool) Stats() Stats {
	return Stats{
		Size:             p.Size(),
		EvictedExpired:   p.evictedExpired.Load(),
		EvictedConfirmed: p.evictedConfirmed.Load(),
		EvictedDropped:   p.evictedDropped.Load(),
	}
}

// Run evicts expired entries periodically until the context ends.
func (p *PendingPool) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evictExpired()
		}
	}
}

func (p *PendingPool) evictExpired() {
	cutoff := time.Now().Add(-p.ttl)
	var evicted int
	p.txs.Range(func(id common.Hash, tx *types.PendingTransaction) bool {
		if tx.ObservedAt.Before(cutoff) {
			if p.remove(id) {
				p.evictedExpired.Add(1)
				evicted++
			}
		}
		return true
	})
	if evicted > 0 {
		p.log.Debug("evicted expired pending transactions", zap.Int("count", evicted))
	}
}

func (p *PendingPool) remove(txID common.Hash) bool {
	if _, ok := p.txs.LoadAndDelete(txID); ok {
		p.size.Add(-1)
		return true
	}
	return false
}
