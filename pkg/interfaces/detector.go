package interfaces

import (
	"context"

	"github.com/VrindaBansal/mevscope/pkg/types"
)

// Detector turns one inbound event plus a consistent snapshot into zero or
// more candidate opportunities. Implementations never mutate shared state;
// they read the snapshot only. Detect must honor ctx cancellation at its
// internal checkpoints so the orchestrator can abandon it at the per-event
// deadline.
type Detector interface {
	Name() string

	// Kinds lists the event kinds the detector subscribes to.
	Kinds() []types.EventKind

	Detect(ctx context.Context, ev types.Event, snap Snapshot) ([]*types.MEVOpportunity, error)
}
