package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"go.uber.org/zap"
)

// ArbitrageConfig tunes the cyclic arbitrage detector.
type ArbitrageConfig struct {
	// MaxHops bounds cycle length and Bellman-Ford relaxation rounds.
	MaxHops int
	// ProbeNotionalUSD sizes the simulated trade through each cycle.
	ProbeNotionalUSD float64
	// MinNetProfitUSD discards cycles below this net profit.
	MinNetProfitUSD float64
	// HopConfidenceDecay shrinks confidence per hop beyond two; longer
	// routes carry more execution latency risk.
	HopConfidenceDecay float64
	// PriceStalenessBound degrades confidence as the start-token price
	// ages, reaching zero at the bound.
	PriceStalenessBound time.Duration
}

// DefaultArbitrageConfig returns the shipped defaults.
func DefaultArbitrageConfig() ArbitrageConfig {
	return ArbitrageConfig{
		MaxHops:             3,
		ProbeNotionalUSD:    10_000,
		MinNetProfitUSD:     10,
		HopConfidenceDecay:  0.85,
		PriceStalenessBound: 30 * time.Second,
	}
}

// ArbitrageDetector finds profitable cycles in the live exchange-rate
// graph. On each reserve update it rebuilds only the affected subgraph,
// searches it for negative-log-weight cycles, and verifies every cycle by
// simulating the exact trade sequence against each pool's own curve.
type ArbitrageDetector struct {
	cfg    ArbitrageConfig
	curves interfaces.CurveRegistry
	gas    interfaces.GasOracle
	log    *zap.Logger
}

// NewArbitrageDetector creates the detector; zero config fields fall back
// to defaults.
func NewArbitrageDetector(cfg ArbitrageConfig, curves interfaces.CurveRegistry, gas interfaces.GasOracle, log *zap.Logger) *ArbitrageDetector {
	def := DefaultArbitrageConfig()
	if cfg.MaxHops < 2 {
		cfg.MaxHops = def.MaxHops
	}
	if cfg.ProbeNotionalUSD <= 0 {
		cfg.ProbeNotionalUSD = def.ProbeNotionalUSD
	}
	if cfg.HopConfidenceDecay <= 0 || cfg.HopConfidenceDecay > 1 {
		cfg.HopConfidenceDecay = def.HopConfidenceDecay
	}
	if cfg.PriceStalenessBound <= 0 {
		cfg.PriceStalenessBound = def.PriceStalenessBound
	}
	return &ArbitrageDetector{cfg: cfg, curves: curves, gas: gas, log: log}
}

func (d *ArbitrageDetector) Name() string { return "arbitrage" }

func (d *ArbitrageDetector) Kinds() []types.EventKind {
	return []types.EventKind{types.KindReserveUpdate}
}

// Detect implements interfaces.Detector.
func (d *ArbitrageDetector) Detect(ctx context.Context, ev types.Event, snap interfaces.Snapshot) ([]*types.MEVOpportunity, error) {
	if ev.Reserve == nil {
		return nil, nil
	}
	trigger, ok := snap.Pool(ev.Reserve.PoolID)
	if !ok {
		return nil, nil
	}

	graph := buildAffectedGraph(snap, d.curves, trigger.Tokens)
	cycles, err := graph.negativeCycles(d.cfg.MaxHops, ctx.Err)
	if err != nil {
		return nil, err
	}

	var out []*types.MEVOpportunity
	for _, cycle := range cycles {
		opp, err := d.simulateCycle(ctx, cycle, graph, snap)
		if err != nil {
			return out, err
		}
		if opp != nil {
			out = append(out, opp)
		}
	}
	return out, nil
}

// simulateCycle runs the probe trade through the cycle hop by hop, checking
// cancellation after each simulated hop, and nets out the gas cost.
func (d *ArbitrageDetector) simulateCycle(ctx context.Context, cycle []rateEdge, graph *rateGraph, snap interfaces.Snapshot) (*types.MEVOpportunity, error) {
	startToken := graph.tokens[cycle[0].from]
	startPrice, priceAt, havePrice := snap.PriceUSD(startToken)
	if !havePrice || startPrice <= 0 {
		// Unpriced start token: the cycle cannot be valued in USD, skip
		// rather than emit an unfilterable record.
		return nil, nil
	}

	amount := d.cfg.ProbeNotionalUSD / startPrice
	steps := make([]types.TradeStep, 0, len(cycle))
	protocols := make([]string, 0, len(cycle))
	poolIDs := make([]string, 0, len(cycle))

	current := amount
	for _, hop := range cycle {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		curve, ok := d.curves.ForKind(hop.pool.Kind)
		if !ok {
			return nil, nil
		}
		outAmt, err := curve.QuoteOutput(hop.pool, hop.inIdx, hop.outIdx, current)
		if err != nil {
			return nil, fmt.Errorf("arbitrage: simulate %s: %w", hop.pool.ID, err)
		}
		steps = append(steps, types.TradeStep{
			PoolID:    hop.pool.ID,
			Protocol:  hop.pool.Protocol,
			TokenIn:   hop.pool.Tokens[hop.inIdx],
			TokenOut:  hop.pool.Tokens[hop.outIdx],
			AmountIn:  current,
			AmountOut: outAmt,
		})
		protocols = appendUnique(protocols, hop.pool.Protocol)
		poolIDs = append(poolIDs, hop.pool.ID)
		current = outAmt
	}

	grossUSD := (current - amount) * startPrice
	gasUSD := d.gas.CostUSD(uint64(len(cycle)) * profit.GasPerSwapHop)
	netUSD := grossUSD - gasUSD
	if netUSD < d.cfg.MinNetProfitUSD {
		return nil, nil
	}

	hopPenalty := math.Pow(d.cfg.HopConfidenceDecay, float64(len(cycle)-2))
	confidence := hopPenalty * profit.StalenessConfidence(time.Since(priceAt), d.cfg.PriceStalenessBound)

	return &types.MEVOpportunity{
		Type:              types.OpportunityArbitrage,
		Protocols:         protocols,
		InvolvedIDs:       poolIDs,
		Steps:             steps,
		GrossProfitUSD:    grossUSD,
		GasCostUSD:        gasUSD,
		NetProfitUSD:      netUSD,
		Confidence:        confidence,
		DetectedAt:        time.Now(),
		SourceBlockHeight: snap.Height(),
		SourceBlockHash:   snap.Hash(),
	}, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
