package interfaces

import (
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// WorldState is the versioned store of pool and position state. Writes are
// serialized per key and tagged with block identity; reads go through
// immutable snapshots.
type WorldState interface {
	// RegisterPool installs pool metadata (tokens, kind, fees) so that
	// reserve updates for it can be applied.
	RegisterPool(pool *types.Pool) error

	// ApplyReserves commits a confirmed reserve change. Updates at or
	// below the key's committed height are rejected with ErrStaleUpdate.
	ApplyReserves(update *types.ReserveUpdate) error

	// ApplyPosition commits a confirmed collateral/debt change.
	ApplyPosition(change *types.PositionChange) error

	// Snapshot returns an immutable read view at the given height.
	// Height 0 means the latest committed height.
	Snapshot(atHeight uint64) (Snapshot, error)

	// Rollback discards every version above toHeight. Used on reorg;
	// blocks concurrent writers until complete.
	Rollback(toHeight uint64, canonicalHash common.Hash) error

	// Head returns the highest committed block identity.
	Head() (uint64, common.Hash)
}

// Snapshot is a point-in-time read view of the world state. Lookups return
// the latest version at or below the snapshot height and never observe
// writes committed afterwards.
type Snapshot interface {
	Height() uint64
	Hash() common.Hash

	Pool(id string) (*types.Pool, bool)
	Position(id string) (*types.Position, bool)

	// PoolsTouching returns the pools whose token set includes the token.
	PoolsTouching(token common.Address) []*types.Pool

	// PriceUSD returns the tracked USD price of a token along with the
	// time it was last refreshed.
	PriceUSD(token common.Address) (float64, time.Time, bool)
}

// StoreStats is a point-in-time summary of store health for monitoring.
type StoreStats struct {
	Pools           int    `json:"pools"`
	Positions       int    `json:"positions"`
	Height          uint64 `json:"height"`
	StaleRejections int64  `json:"staleRejections"`
	DecodeErrors    int64  `json:"decodeErrors"`
	Rollbacks       int64  `json:"rollbacks"`
}
