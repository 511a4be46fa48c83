package interfaces

import (
	"context"

	"github.com/VrindaBansal/mevscope/pkg/types"
)

// OpportunitySink receives accepted opportunities. Implementations are
// boundary adapters (log, bus, storage, dashboard push); a sink failure is
// logged and never fails the detection pipeline.
type OpportunitySink interface {
	Name() string
	Publish(ctx context.Context, opp *types.MEVOpportunity) error
}
