package strategy

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// LiquidationConfig tunes the liquidation monitor.
type LiquidationConfig struct {
	// MinDeltaToReEmit is the relative change in bonus or size required
	// to re-emit a position already below the liquidation line.
	MinDeltaToReEmit float64
	// PriceStalenessBound caps how old a price snapshot may be before a
	// position is no longer considered liquidatable (and degrades
	// confidence on its way there).
	PriceStalenessBound time.Duration
	// RecomputeWorkers parallelizes health recomputation across the
	// affected position set.
	RecomputeWorkers int
	// BatchSize is the number of positions evaluated between
	// cancellation checkpoints.
	BatchSize int
}

// DefaultLiquidationConfig returns the shipped defaults.
func DefaultLiquidationConfig() LiquidationConfig {
	return LiquidationConfig{
		MinDeltaToReEmit:    0.10,
		PriceStalenessBound: 30 * time.Second,
		RecomputeWorkers:    4,
		BatchSize:           64,
	}
}

type emitRecord struct {
	bonusUSD float64
	sizeUSD  float64
}

// LiquidationMonitor watches collateralized positions and recomputes health
// factors for the subset exposed to each price update. A position crossing
// below 1.0 emits a liquidation opportunity; one already below re-emits
// only on a material change in bonus or size.
type LiquidationMonitor struct {
	cfg    LiquidationConfig
	valuer *profit.Valuer
	gas    interfaces.GasOracle
	log    *zap.Logger
	pool   pond.Pool

	mu       sync.RWMutex
	exposure map[common.Address]map[string]struct{}
	lastEmit map[string]emitRecord
}

// NewLiquidationMonitor creates the monitor; zero config fields fall back
// to defaults.
func NewLiquidationMonitor(cfg LiquidationConfig, valuer *profit.Valuer, gas interfaces.GasOracle, log *zap.Logger) *LiquidationMonitor {
	def := DefaultLiquidationConfig()
	if cfg.MinDeltaToReEmit <= 0 {
		cfg.MinDeltaToReEmit = def.MinDeltaToReEmit
	}
	if cfg.PriceStalenessBound <= 0 {
		cfg.PriceStalenessBound = def.PriceStalenessBound
	}
	if cfg.RecomputeWorkers <= 0 {
		cfg.RecomputeWorkers = def.RecomputeWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &LiquidationMonitor{
		cfg:      cfg,
		valuer:   valuer,
		gas:      gas,
		log:      log,
		pool:     pond.NewPool(cfg.RecomputeWorkers),
		exposure: make(map[common.Address]map[string]struct{}),
		lastEmit: make(map[string]emitRecord),
	}
}

func (m *LiquidationMonitor) Name() string { return "liquidation" }

func (m *LiquidationMonitor) Kinds() []types.EventKind {
	return []types.EventKind{types.KindReserveUpdate, types.KindPositionChange}
}

// Detect implements interfaces.Detector.
func (m *LiquidationMonitor) Detect(ctx context.Context, ev types.Event, snap interfaces.Snapshot) ([]*types.MEVOpportunity, error) {
	switch ev.Kind {
	case types.KindPositionChange:
		if ev.Position == nil || ev.Position.Position == nil {
			return nil, nil
		}
		m.reindex(ev.Position.Position)
		if opp := m.evaluate(ev.Position.Position.ID, snap); opp != nil {
			return []*types.MEVOpportunity{opp}, nil
		}
		return nil, nil

	case types.KindReserveUpdate:
		if ev.Reserve == nil {
			return nil, nil
		}
		pool, ok := snap.Pool(ev.Reserve.PoolID)
		if !ok {
			return nil, nil
		}
		return m.recomputeAffected(ctx, pool.Tokens, snap)
	}
	return nil, nil
}

// reindex updates the token exposure index for a position.
func (m *LiquidationMonitor) reindex(pos *types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, set := range m.exposure {
		delete(set, pos.ID)
	}
	touch := func(tok common.Address) {
		set, ok := m.exposure[tok]
		if !ok {
			set = make(map[string]struct{})
			m.exposure[tok] = set
		}
		set[pos.ID] = struct{}{}
	}
	for _, c := range pos.Collateral {
		touch(c.Token)
	}
	for _, d := range pos.Debt {
		touch(d.Token)
	}
}

// recomputeAffected re-evaluates only positions exposed to the changed
// tokens, in parallel batches with a cancellation checkpoint per batch.
func (m *LiquidationMonitor) recomputeAffected(ctx context.Context, tokens []common.Address, snap interfaces.Snapshot) ([]*types.MEVOpportunity, error) {
	m.mu.RLock()
	affected := make(map[string]struct{})
	for _, tok := range tokens {
		for id := range m.exposure[tok] {
			affected[id] = struct{}{}
		}
	}
	m.mu.RUnlock()
	if len(affected) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}

	var (
		outMu sync.Mutex
		out   []*types.MEVOpportunity
	)
	group := m.pool.NewGroupContext(ctx)
	for start := 0; start < len(ids); start += m.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		batch := ids[start:min(start+m.cfg.BatchSize, len(ids))]
		group.Submit(func() {
			for _, id := range batch {
				if ctx.Err() != nil {
					return
				}
				if opp := m.evaluate(id, snap); opp != nil {
					outMu.Lock()
					out = append(out, opp)
					outMu.Unlock()
				}
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return out, err
	}
	return out, ctx.Err()
}

// evaluate recomputes one position's health factor and applies the
// crossing/re-emit policy. Returns nil when nothing should be emitted.
func (m *LiquidationMonitor) evaluate(id string, snap interfaces.Snapshot) *types.MEVOpportunity {
	pos, ok := snap.Position(id)
	if !ok {
		return nil
	}

	collUSD, collAge, ok := m.valuer.ValueAssetsUSD(pos.Collateral)
	if !ok {
		return nil
	}
	debtUSD, debtAge, ok := m.valuer.ValueAssetsUSD(pos.Debt)
	if !ok || debtUSD <= 0 {
		return nil
	}
	age := collAge
	if debtAge > age {
		age = debtAge
	}
	// A liquidation call against a stale valuation is likely to revert;
	// skip rather than emit on prices past the bound.
	if age >= m.cfg.PriceStalenessBound {
		return nil
	}

	health := collUSD * pos.LiquidationThreshold / debtUSD
	if health >= 1 {
		m.mu.Lock()
		delete(m.lastEmit, id)
		m.mu.Unlock()
		return nil
	}

	bonusUSD := debtUSD * pos.LiquidationBonus
	m.mu.Lock()
	last, emittedBefore := m.lastEmit[id]
	if emittedBefore &&
		relDelta(bonusUSD, last.bonusUSD) < m.cfg.MinDeltaToReEmit &&
		relDelta(debtUSD, last.sizeUSD) < m.cfg.MinDeltaToReEmit {
		m.mu.Unlock()
		return nil
	}
	m.lastEmit[id] = emitRecord{bonusUSD: bonusUSD, sizeUSD: debtUSD}
	m.mu.Unlock()

	gasUSD := m.gas.CostUSD(profit.GasPerLiquidation)
	netUSD := bonusUSD - gasUSD
	return &types.MEVOpportunity{
		Type:              types.OpportunityLiquidation,
		Protocols:         []string{pos.Protocol},
		InvolvedIDs:       []string{pos.ID},
		GrossProfitUSD:    bonusUSD,
		GasCostUSD:        gasUSD,
		NetProfitUSD:      netUSD,
		Confidence:        profit.StalenessConfidence(age, m.cfg.PriceStalenessBound),
		DetectedAt:        time.Now(),
		SourceBlockHeight: snap.Height(),
		SourceBlockHash:   snap.Hash(),
	}
}

func relDelta(now, prev float64) float64 {
	if prev == 0 {
		return math.Inf(1)
	}
	return math.Abs(now-prev) / math.Abs(prev)
}
