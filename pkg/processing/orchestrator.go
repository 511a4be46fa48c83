// Package processing wires the event stream to the world state store and
// fans each event out to the subscribed detectors under a per-event
// deadline.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/mempool"
	"github.com/VrindaBansal/mevscope/pkg/metrics"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Config tunes the orchestrator.
type Config struct {
	// Workers sizes the detection worker pool.
	Workers int
	// QueueSize bounds the worker pool's backlog.
	QueueSize int
	// DetectorTimeout is the per-event deadline each detector runs under.
	// A detector past its deadline is abandoned for that event and the
	// pipeline moves on.
	DetectorTimeout time.Duration
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         8,
		QueueSize:       4096,
		DetectorTimeout: 500 * time.Millisecond,
	}
}

// Orchestrator owns event intake: updates are applied to the store first,
// then a consistent snapshot is fanned out to every detector subscribed to
// the event kind. Events are applied in arrival order by a single loop;
// reorgs act as a barrier since the store's rollback excludes concurrent
// writers and the loop waits out in-flight detections before rolling back.
type Orchestrator struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Collector

	store   *state.Store
	scorer  interfaces.Scorer
	pending *mempool.PendingPool
	gas     interfaces.GasOracle

	pool pond.Pool
	subs map[types.EventKind][]interfaces.Detector
}

// NewOrchestrator builds the subscription table from each detector's
// declared kinds. Zero config fields fall back to defaults.
func NewOrchestrator(
	cfg Config,
	store *state.Store,
	scorer interfaces.Scorer,
	pending *mempool.PendingPool,
	gas interfaces.GasOracle,
	detectors []interfaces.Detector,
	collector *metrics.Collector,
	log *zap.Logger,
) *Orchestrator {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.DetectorTimeout <= 0 {
		cfg.DetectorTimeout = def.DetectorTimeout
	}

	subs := make(map[types.EventKind][]interfaces.Detector)
	for _, det := range detectors {
		for _, kind := range det.Kinds() {
			subs[kind] = append(subs[kind], det)
		}
	}

	return &Orchestrator{
		cfg:     cfg,
		log:     log,
		metrics: collector,
		store:   store,
		scorer:  scorer,
		pending: pending,
		gas:     gas,
		pool:    pond.NewPool(cfg.Workers, pond.WithQueueSize(cfg.QueueSize)),
		subs:    subs,
	}
}

// Run consumes events until the channel closes or the context ends.
func (o *Orchestrator) Run(ctx context.Context, events <-chan types.Event) error {
	o.log.Info("orchestrator running",
		zap.Int("workers", o.cfg.Workers),
		zap.Duration("detector_timeout", o.cfg.DetectorTimeout),
		zap.Int("subscribed_kinds", len(o.subs)))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := o.HandleEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// HandleEvent applies one event and runs the subscribed detectors against
// the post-event snapshot. Rejected updates (stale, malformed, unknown) are
// counted and skipped, never fatal; only a broken store or a canceled
// context stops the pipeline.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev types.Event) error {
	if o.metrics != nil {
		o.metrics.IncEvent(string(ev.Kind))
	}

	switch ev.Kind {
	case types.KindReorg:
		return o.handleReorg(ev.Reorg)

	case types.KindReserveUpdate:
		if ev.Reserve == nil {
			o.countDecodeError()
			return nil
		}
		if err := o.store.ApplyReserves(ev.Reserve); err != nil {
			o.countApplyError(err, "reserve update rejected", zap.String("pool", ev.Reserve.PoolID))
			return nil
		}
		return o.dispatch(ctx, ev, ev.Reserve.BlockHeight)

	case types.KindPositionChange:
		if ev.Position == nil || ev.Position.Position == nil {
			o.countDecodeError()
			return nil
		}
		if err := o.store.ApplyPosition(ev.Position); err != nil {
			o.countApplyError(err, "position change rejected", zap.String("position", ev.Position.Position.ID))
			return nil
		}
		return o.dispatch(ctx, ev, ev.Position.BlockHeight)

	case types.KindPendingTx:
		if ev.Pending == nil {
			o.countDecodeError()
			return nil
		}
		o.gas.Observe(ev.Pending.GasPriceGwei())
		o.pending.Add(ev.Pending)
		if o.metrics != nil {
			o.metrics.SetPendingTransactions(o.pending.Size())
		}
		head, _ := o.store.Head()
		return o.dispatch(ctx, ev, head)

	default:
		o.countDecodeError()
		return nil
	}
}

// handleReorg rolls the store back to the common ancestor and flags every
// opportunity sourced above it.
func (o *Orchestrator) handleReorg(notice *types.ReorgNotice) error {
	if notice == nil {
		o.countDecodeError()
		return nil
	}
	if err := o.store.Rollback(notice.CommonAncestorHeight, notice.CommonAncestorHash); err != nil {
		return fmt.Errorf("orchestrator: rollback to %d: %w", notice.CommonAncestorHeight, err)
	}
	o.scorer.Invalidate(notice.CommonAncestorHeight + 1)
	if o.metrics != nil {
		o.metrics.IncReorg()
	}
	o.log.Warn("reorg handled",
		zap.Uint64("common_ancestor", notice.CommonAncestorHeight),
		zap.String("hash", notice.CommonAncestorHash.Hex()))
	return nil
}

// dispatch fans the event out to the subscribed detectors against a
// snapshot fixed at the event's height, and offers every candidate to the
// scorer. It waits for the fan-out so events keep their arrival order
// through the pipeline; the per-detector deadline bounds the wait.
func (o *Orchestrator) dispatch(ctx context.Context, ev types.Event, height uint64) error {
	detectors := o.subs[ev.Kind]
	if len(detectors) == 0 {
		return nil
	}
	snap, err := o.store.Snapshot(height)
	if err != nil {
		return fmt.Errorf("orchestrator: snapshot at %d: %w", height, err)
	}

	group := o.pool.NewGroupContext(ctx)
	for _, det := range detectors {
		group.Submit(func() {
			o.runDetector(ctx, det, ev, snap)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	return ctx.Err()
}

func (o *Orchestrator) runDetector(ctx context.Context, det interfaces.Detector, ev types.Event, snap interfaces.Snapshot) {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.DetectorTimeout)
	defer cancel()

	start := time.Now()
	opps, err := det.Detect(dctx, ev, snap)
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.ObserveDetection(det.Name(), elapsed)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		if o.metrics != nil {
			o.metrics.IncDetectorTimeout(det.Name())
		}
		o.log.Warn("detector deadline exceeded, event abandoned",
			zap.String("detector", det.Name()),
			zap.String("kind", string(ev.Kind)),
			zap.Duration("elapsed", elapsed))
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		if o.metrics != nil {
			o.metrics.IncDetectorFault(det.Name())
		}
		o.log.Error("detector fault",
			zap.String("detector", det.Name()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
		return
	}

	for _, opp := range opps {
		o.scorer.Offer(opp)
	}
}

func (o *Orchestrator) countDecodeError() {
	if o.metrics != nil {
		o.metrics.IncDecodeError()
	}
}

func (o *Orchestrator) countApplyError(err error, msg string, fields ...zap.Field) {
	if o.metrics != nil {
		switch {
		case errors.Is(err, state.ErrStaleUpdate):
			o.metrics.IncStaleWrite()
		default:
			o.metrics.IncDecodeError()
		}
	}
	o.log.Debug(msg, append(fields, zap.Error(err))...)
}
