// Package state holds the versioned world state: pool reserves, lending
// positions, and the token price index. Writes are serialized per key and
// tagged with block identity; detectors read through immutable snapshots so
// a reorg can roll the world back without racing in-flight reads.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

var (
	// ErrStaleUpdate is returned for an update at or below the key's
	// committed height. Replays are rejected, never applied silently.
	ErrStaleUpdate = errors.New("state: update height not newer than committed")

	// ErrUnknownPool is returned for a reserve update naming a pool that
	// was never registered.
	ErrUnknownPool = errors.New("state: unknown pool")

	// ErrNegativeReserve is returned when an update would set a negative
	// reserve. Treated upstream as a decode inconsistency.
	ErrNegativeReserve = errors.New("state: negative reserve")

	// ErrMalformedUpdate is returned when an update's reserve cardinality
	// does not match the pool's token set.
	ErrMalformedUpdate = errors.New("state: malformed update")
)

// DefaultRetainBlocks is how many blocks of history each key keeps for
// rollback before old versions are pruned.
const DefaultRetainBlocks = 64

type version[T any] struct {
	height uint64
	hash   common.Hash
	value  T
}

// history is the linear per-key version chain, ascending by height.
// The mutex serializes writes to this key only.
type history[T any] struct {
	mu       sync.RWMutex
	versions []version[T]
}

func (h *history[T]) latestAtOrBelow(height uint64) (version[T], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := sort.Search(len(h.versions), func(i int) bool {
		return h.versions[i].height > height
	})
	if n == 0 {
		var zero version[T]
		return zero, false
	}
	return h.versions[n-1], true
}

func (h *history[T]) trimAbove(height uint64, keepFirst bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := sort.Search(len(h.versions), func(i int) bool {
		return h.versions[i].height > height
	})
	if n == 0 && keepFirst && len(h.versions) > 0 {
		// Registration metadata (token set, kind, fees) is height
		// independent; keep it even when the registering block is
		// orphaned so later updates can still apply.
		n = 1
	}
	h.versions = h.versions[:n]
}

// Store implements interfaces.WorldState.
type Store struct {
	log    *zap.Logger
	retain uint64

	// reorgMu is the rollback barrier: writers hold it shared, Rollback
	// holds it exclusively so no update below the rollback height can
	// race the trim.
	reorgMu sync.RWMutex

	pools     *xsync.Map[string, *history[*types.Pool]]
	positions *xsync.Map[string, *history[*types.Position]]

	// byToken maps a token to the IDs of registered pools containing it.
	// Registration-time only; the token set of a pool never changes.
	byToken   *xsync.Map[common.Address, []string]
	tokenMu   sync.Mutex
	poolCount atomic.Int64
	posCount  atomic.Int64

	prices *PriceIndex

	headMu     sync.Mutex
	headHeight uint64
	headHash   common.Hash
	// heads remembers recent height->hash so snapshots below head still
	// carry their block identity.
	heads map[uint64]common.Hash

	staleRejections atomic.Int64
	decodeErrors    atomic.Int64
	rollbacks       atomic.Int64
}

// NewStore creates a world state store. retainBlocks <= 0 uses the default.
func NewStore(log *zap.Logger, prices *PriceIndex, retainBlocks uint64) *Store {
	if retainBlocks == 0 {
		retainBlocks = DefaultRetainBlocks
	}
	if prices == nil {
		prices = NewPriceIndex(nil)
	}
	return &Store{
		log:       log,
		retain:    retainBlocks,
		pools:     xsync.NewMap[string, *history[*types.Pool]](),
		positions: xsync.NewMap[string, *history[*types.Position]](),
		byToken:   xsync.NewMap[common.Address, []string](),
		prices:    prices,
		heads:     make(map[uint64]common.Hash),
	}
}

// Prices exposes the store's price index.
func (s *Store) Prices() *PriceIndex { return s.prices }

// RegisterPool installs pool metadata so reserve updates can be applied.
// Registering an already-known pool is a no-op.
func (s *Store) RegisterPool(pool *types.Pool) error {
	s.reorgMu.RLock()
	defer s.reorgMu.RUnlock()

	if pool == nil || pool.ID == "" {
		return fmt.Errorf("%w: missing pool id", ErrMalformedUpdate)
	}
	if len(pool.Tokens) < 2 || len(pool.Tokens) != len(pool.Reserves) || len(pool.Tokens) != len(pool.Decimals) {
		return fmt.Errorf("%w: pool %s token/reserve cardinality", ErrMalformedUpdate, pool.ID)
	}
	base := &history[*types.Pool]{versions: []version[*types.Pool]{{
		height: pool.BlockHeight,
		hash:   pool.BlockHash,
		value:  pool.Clone(),
	}}}
	if _, loaded := s.pools.LoadOrStore(pool.ID, base); loaded {
		return nil
	}
	s.poolCount.Add(1)

	s.tokenMu.Lock()
	for _, tok := range pool.Tokens {
		ids, _ := s.byToken.Load(tok)
		s.byToken.Store(tok, append(append([]string(nil), ids...), pool.ID))
	}
	s.tokenMu.Unlock()

	s.prices.ObservePool(pool)
	// The base version must be reachable from the head snapshot even if
	// the first reserve update never lands.
	s.advanceHead(pool.BlockHeight, pool.BlockHash)
	return nil
}

// ApplyReserves commits a confirmed reserve change for a registered pool.
func (s *Store) ApplyReserves(update *types.ReserveUpdate) error {
	s.reorgMu.RLock()
	defer s.reorgMu.RUnlock()

	hist, ok := s.pools.Load(update.PoolID)
	if !ok {
		s.decodeErrors.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownPool, update.PoolID)
	}

	hist.mu.Lock()
	latest := hist.versions[len(hist.versions)-1]
	if update.BlockHeight <= latest.height {
		hist.mu.Unlock()
		s.staleRejections.Add(1)
		return fmt.Errorf("%w: pool %s at %d, committed %d",
			ErrStaleUpdate, update.PoolID, update.BlockHeight, latest.height)
	}
	if len(update.Reserves) != len(latest.value.Tokens) {
		hist.mu.Unlock()
		s.decodeErrors.Add(1)
		return fmt.Errorf("%w: pool %s expected %d reserves, got %d",
			ErrMalformedUpdate, update.PoolID, len(latest.value.Tokens), len(update.Reserves))
	}
	for i, r := range update.Reserves {
		if r == nil || r.Sign() < 0 {
			hist.mu.Unlock()
			s.decodeErrors.Add(1)
			return fmt.Errorf("%w: pool %s reserve %d", ErrNegativeReserve, update.PoolID, i)
		}
	}

	next := latest.value.Clone()
	for i, r := range update.Reserves {
		next.Reserves[i].Set(r)
	}
	next.BlockHeight = update.BlockHeight
	next.BlockHash = update.BlockHash

	hist.versions = append(hist.versions, version[*types.Pool]{
		height: update.BlockHeight,
		hash:   update.BlockHash,
		value:  next,
	})
	s.pruneLocked(&hist.versions, update.BlockHeight)
	hist.mu.Unlock()

	s.advanceHead(update.BlockHeight, update.BlockHash)
	s.prices.ObservePoolAt(next, update.Timestamp)
	return nil
}

// ApplyPosition commits a confirmed collateral/debt change. Unknown
// positions are created; known positions follow the same linear history
// rules as pools.
func (s *Store) ApplyPosition(change *types.PositionChange) error {
	s.reorgMu.RLock()
	defer s.reorgMu.RUnlock()

	pos := change.Position
	if pos == nil || pos.ID == "" {
		s.decodeErrors.Add(1)
		return fmt.Errorf("%w: missing position", ErrMalformedUpdate)
	}
	for _, a := range append(append([]types.AssetAmount(nil), pos.Collateral...), pos.Debt...) {
		if a.Amount == nil || a.Amount.Sign() < 0 {
			s.decodeErrors.Add(1)
			return fmt.Errorf("%w: position %s", ErrNegativeReserve, pos.ID)
		}
	}

	next := pos.Clone()
	next.BlockHeight = change.BlockHeight
	next.BlockHash = change.BlockHash

	fresh := &history[*types.Position]{}
	hist, loaded := s.positions.LoadOrStore(pos.ID, fresh)
	if !loaded {
		s.posCount.Add(1)
	}

	hist.mu.Lock()
	if n := len(hist.versions); n > 0 && change.BlockHeight <= hist.versions[n-1].height {
		hist.mu.Unlock()
		s.staleRejections.Add(1)
		return fmt.Errorf("%w: position %s at %d", ErrStaleUpdate, pos.ID, change.BlockHeight)
	}
	hist.versions = append(hist.versions, version[*types.Position]{
		height: change.BlockHeight,
		hash:   change.BlockHash,
		value:  next,
	})
	s.prunePositionsLocked(&hist.versions, change.BlockHeight)
	hist.mu.Unlock()

	s.advanceHead(change.BlockHeight, change.BlockHash)
	return nil
}

// Snapshot returns an immutable read view. atHeight 0 means head. A height
// with no recorded identity borrows the hash of the nearest retained block
// at or below it, matching the versions the snapshot actually reads.
func (s *Store) Snapshot(atHeight uint64) (interfaces.Snapshot, error) {
	s.headMu.Lock()
	height, hash := s.headHeight, s.headHash
	if atHeight != 0 && atHeight != height {
		height = atHeight
		hash = s.hashAtOrBelowLocked(atHeight)
	}
	s.headMu.Unlock()
	return &snapshot{store: s, height: height, hash: hash}, nil
}

func (s *Store) hashAtOrBelowLocked(height uint64) common.Hash {
	if hash, ok := s.heads[height]; ok {
		return hash
	}
	var (
		best     uint64
		bestHash common.Hash
		found    bool
	)
	for h, hash := range s.heads {
		if h <= height && (!found || h > best) {
			best, bestHash, found = h, hash, true
		}
	}
	return bestHash
}

// Rollback discards all versions above toHeight and resets the head.
// Writers are excluded for the duration, so no update can race the trim.
func (s *Store) Rollback(toHeight uint64, canonicalHash common.Hash) error {
	s.reorgMu.Lock()
	defer s.reorgMu.Unlock()

	s.pools.Range(func(_ string, h *history[*types.Pool]) bool {
		h.trimAbove(toHeight, true)
		return true
	})
	s.positions.Range(func(id string, h *history[*types.Position]) bool {
		h.trimAbove(toHeight, false)
		return true
	})

	s.headMu.Lock()
	for height := range s.heads {
		if height > toHeight {
			delete(s.heads, height)
		}
	}
	s.headHeight = toHeight
	s.headHash = canonicalHash
	s.heads[toHeight] = canonicalHash
	s.headMu.Unlock()

	s.prices.Rebuild(s.poolsAt(toHeight))
	s.rollbacks.Add(1)
	s.log.Info("world state rolled back",
		zap.Uint64("toHeight", toHeight),
		zap.String("canonicalHash", canonicalHash.Hex()))
	return nil
}

// Head returns the highest committed block identity.
func (s *Store) Head() (uint64, common.Hash) {
	s.headMu.Lock()
	defer s.headMu.Unlock()
	return s.headHeight, s.headHash
}

// Stats returns store health counters for the status surface.
func (s *Store) Stats() interfaces.StoreStats {
	height, _ := s.Head()
	return interfaces.StoreStats{
		Pools:           int(s.poolCount.Load()),
		Positions:       int(s.posCount.Load()),
		Height:          height,
		StaleRejections: s.staleRejections.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		Rollbacks:       s.rollbacks.Load(),
	}
}

func (s *Store) advanceHead(height uint64, hash common.Hash) {
	s.headMu.Lock()
	defer s.headMu.Unlock()
	s.heads[height] = hash
	if height > s.headHeight {
		s.headHeight = height
		s.headHash = hash
	}
	for h := range s.heads {
		if h+s.retain < height {
			delete(s.heads, h)
		}
	}
}

func (s *Store) poolsAt(height uint64) []*types.Pool {
	var out []*types.Pool
	s.pools.Range(func(_ string, h *history[*types.Pool]) bool {
		if v, ok := h.latestAtOrBelow(height); ok {
			out = append(out, v.value)
		}
		return true
	})
	return out
}

func (s *Store) pruneLocked(versions *[]version[*types.Pool], head uint64) {
	v := *versions
	for len(v) > 1 && v[0].height+s.retain < head {
		v = v[1:]
	}
	*versions = v
}

func (s *Store) prunePositionsLocked(versions *[]version[*types.Position], head uint64) {
	v := *versions
	for len(v) > 1 && v[0].height+s.retain < head {
		v = v[1:]
	}
	*versions = v
}
