package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the inbound event families the engine consumes.
type EventKind string

const (
	KindReserveUpdate  EventKind = "reserve-update"
	KindPendingTx      EventKind = "pending-tx"
	KindPositionChange EventKind = "position-change"
	KindReorg          EventKind = "reorg"
)

// ReserveUpdate is a confirmed price/reserve change for one pool.
type ReserveUpdate struct {
	PoolID      string      `json:"poolId"`
	BlockHeight uint64      `json:"blockHeight"`
	BlockHash   common.Hash `json:"blockHash"`
	Reserves    []*big.Int  `json:"reserves"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PositionChange is a confirmed collateral/debt mutation of one position.
type PositionChange struct {
	Position    *Position   `json:"position"`
	BlockHeight uint64      `json:"blockHeight"`
	BlockHash   common.Hash `json:"blockHash"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ReorgNotice signals that blocks above the common ancestor are orphaned.
type ReorgNotice struct {
	CommonAncestorHeight uint64      `json:"commonAncestorHeight"`
	CommonAncestorHash   common.Hash `json:"commonAncestorHash"`
}

// Event is the tagged union delivered to the orchestrator. Exactly one
// payload field is set, matching Kind.
type Event struct {
	Kind EventKind `json:"kind"`

	Reserve  *ReserveUpdate      `json:"reserve,omitempty"`
	Pending  *PendingTransaction `json:"pending,omitempty"`
	Position *PositionChange     `json:"position,omitempty"`
	Reorg    *ReorgNotice        `json:"reorg,omitempty"`
}

// NewReserveEvent wraps a reserve update.
func NewReserveEvent(u *ReserveUpdate) Event {
	return Event{Kind: KindReserveUpdate, Reserve: u}
}

// NewPendingEvent wraps a pending transaction sighting.
func NewPendingEvent(tx *PendingTransaction) Event {
	return Event{Kind: KindPendingTx, Pending: tx}
}

// NewPositionEvent wraps a position change.
func NewPositionEvent(pc *PositionChange) Event {
	return Event{Kind: KindPositionChange, Position: pc}
}

// NewReorgEvent wraps a reorg notice.
func NewReorgEvent(n *ReorgNotice) Event {
	return Event{Kind: KindReorg, Reorg: n}
}
