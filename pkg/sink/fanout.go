package sink

import (
	"context"
	"fmt"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"go.uber.org/zap"
)

// Fanout publishes to every child sink. A child failure is logged and does
// not stop the others; the joined error is returned for accounting.
type Fanout struct {
	log      *zap.Logger
	children []interfaces.OpportunitySink
}

func NewFanout(log *zap.Logger, children ...interfaces.OpportunitySink) *Fanout {
	return &Fanout{log: log, children: children}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Publish(ctx context.Context, opp *types.MEVOpportunity) error {
	var errs []error
	for _, child := range f.children {
		if err := child.Publish(ctx, opp); err != nil {
			f.log.Error("sink publish failed",
				zap.String("sink", child.Name()),
				zap.String("id", opp.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", child.Name(), err))
		}
	}
	return joinPublishErrors(errs)
}
