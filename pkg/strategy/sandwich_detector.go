package strategy

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"go.uber.org/zap"
)

// SandwichConfig tunes the sandwich detector.
type SandwichConfig struct {
	// MaxCapitalUSD caps the front-run trade size.
	MaxCapitalUSD float64
	// MinVictimAmountUSD ignores swaps too small to sandwich profitably.
	MinVictimAmountUSD float64
	// MinNetProfitUSD discards candidates below this net profit.
	MinNetProfitUSD float64
	// BaseConfidence is the confidence before penalties.
	BaseConfidence float64
	// CompetitionPenaltyWeight scales the gas-percentile competition
	// penalty: a victim gas price at the top of its pool's recent
	// distribution loses this fraction of confidence.
	CompetitionPenaltyWeight float64
	// PriceStalenessBound degrades confidence with price age.
	PriceStalenessBound time.Duration
}

// DefaultSandwichConfig returns the shipped defaults.
func DefaultSandwichConfig() SandwichConfig {
	return SandwichConfig{
		MaxCapitalUSD:            50_000,
		MinVictimAmountUSD:       2_000,
		MinNetProfitUSD:          10,
		BaseConfidence:           0.9,
		CompetitionPenaltyWeight: 0.6,
		PriceStalenessBound:      30 * time.Second,
	}
}

// SandwichDetector simulates inserting a trade before and after a pending
// victim swap, sized under the capital constraint and shrunk until the
// victim's min-out still clears (otherwise the victim reverts and the
// sandwich collapses).
type SandwichDetector struct {
	cfg    SandwichConfig
	curves interfaces.CurveRegistry
	valuer *profit.Valuer
	gas    interfaces.GasOracle
	window *GasWindow
	log    *zap.Logger
}

// NewSandwichDetector creates the detector; zero config fields fall back to
// defaults.
func NewSandwichDetector(cfg SandwichConfig, curves interfaces.CurveRegistry, valuer *profit.Valuer, gas interfaces.GasOracle, window *GasWindow, log *zap.Logger) *SandwichDetector {
	def := DefaultSandwichConfig()
	if cfg.MaxCapitalUSD <= 0 {
		cfg.MaxCapitalUSD = def.MaxCapitalUSD
	}
	if cfg.MinVictimAmountUSD <= 0 {
		cfg.MinVictimAmountUSD = def.MinVictimAmountUSD
	}
	if cfg.BaseConfidence <= 0 || cfg.BaseConfidence > 1 {
		cfg.BaseConfidence = def.BaseConfidence
	}
	if cfg.CompetitionPenaltyWeight <= 0 || cfg.CompetitionPenaltyWeight > 1 {
		cfg.CompetitionPenaltyWeight = def.CompetitionPenaltyWeight
	}
	if cfg.PriceStalenessBound <= 0 {
		cfg.PriceStalenessBound = def.PriceStalenessBound
	}
	if window == nil {
		window = NewGasWindow(0)
	}
	return &SandwichDetector{cfg: cfg, curves: curves, valuer: valuer, gas: gas, window: window, log: log}
}

func (d *SandwichDetector) Name() string { return "sandwich" }

func (d *SandwichDetector) Kinds() []types.EventKind {
	return []types.EventKind{types.KindPendingTx}
}

// Detect implements interfaces.Detector.
func (d *SandwichDetector) Detect(ctx context.Context, ev types.Event, snap interfaces.Snapshot) ([]*types.MEVOpportunity, error) {
	tx := ev.Pending
	if tx == nil || tx.Swap == nil {
		return nil, nil
	}
	pool, ok := snap.Pool(tx.Swap.PoolID)
	if !ok {
		return nil, nil
	}
	in := pool.TokenIndex(tx.Swap.TokenIn)
	out := pool.TokenIndex(tx.Swap.TokenOut)
	if in < 0 || out < 0 {
		return nil, nil
	}
	curve, ok := d.curves.ForKind(pool.Kind)
	if !ok {
		return nil, nil
	}

	// Rank against traffic seen before this transaction, then fold it in.
	competition := d.window.PercentileRank(pool.ID, tx.GasPriceGwei())
	d.window.Observe(pool.ID, tx.GasPriceGwei())

	victimIn := tx.Swap.AmountInNormalized()
	victimInUSD, priceAge, priced := d.valuer.ValueUSD(tx.Swap.TokenIn, victimIn)
	if !priced || victimInUSD < d.cfg.MinVictimAmountUSD {
		return nil, nil
	}

	inPrice := victimInUSD / victimIn
	frontIn := d.cfg.MaxCapitalUSD / inPrice
	if frontIn > victimIn*2 {
		// Fronting far beyond the victim's size only adds slippage to
		// our own exit.
		frontIn = victimIn * 2
	}
	victimMinOut := types.AssetAmount{
		Token:    tx.Swap.TokenOut,
		Amount:   tx.Swap.MinAmountOut,
		Decimals: poolDecimals(pool, out),
	}.Normalized()

	// Shrink the front-run until the victim still clears its min-out.
	var result *sandwichResult
	for attempt := 0; attempt < 8 && frontIn > 0; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := d.simulate(curve, pool, in, out, frontIn, victimIn)
		if err != nil {
			return nil, nil
		}
		if victimMinOut == 0 || r.victimOut >= victimMinOut {
			result = r
			break
		}
		frontIn /= 2
	}
	if result == nil {
		return nil, nil
	}

	grossUSD := (result.backOut - frontIn) * inPrice
	gasUSD := d.gas.CostUSD(profit.GasPerSandwich)
	netUSD := grossUSD - gasUSD
	if netUSD < d.cfg.MinNetProfitUSD {
		return nil, nil
	}

	confidence := d.cfg.BaseConfidence *
		(1 - d.cfg.CompetitionPenaltyWeight*competition) *
		profit.StalenessConfidence(priceAge, d.cfg.PriceStalenessBound)

	return []*types.MEVOpportunity{{
		Type:        types.OpportunitySandwich,
		Protocols:   []string{pool.Protocol},
		InvolvedIDs: []string{tx.TxID.Hex()},
		Steps: []types.TradeStep{
			{
				PoolID:   pool.ID,
				Protocol: pool.Protocol,
				TokenIn:  pool.Tokens[in],
				TokenOut: pool.Tokens[out],
				AmountIn: frontIn, AmountOut: result.frontOut,
			},
			{
				PoolID:   pool.ID,
				Protocol: pool.Protocol,
				TokenIn:  pool.Tokens[out],
				TokenOut: pool.Tokens[in],
				AmountIn: result.frontOut, AmountOut: result.backOut,
			},
		},
		GrossProfitUSD:    grossUSD,
		GasCostUSD:        gasUSD,
		NetProfitUSD:      netUSD,
		Confidence:        confidence,
		DetectedAt:        time.Now(),
		SourceBlockHeight: snap.Height(),
		SourceBlockHash:   snap.Hash(),
	}}, nil
}

type sandwichResult struct {
	frontOut  float64
	victimOut float64
	backOut   float64
}

// simulate plays front-run, victim, back-run against a scratch copy of the
// pool, mutating reserves between legs.
func (d *SandwichDetector) simulate(curve interfaces.PricingCurve, pool *types.Pool, in, out int, frontIn, victimIn float64) (*sandwichResult, error) {
	scratch := pool.Clone()

	frontOut, err := curve.QuoteOutput(scratch, in, out, frontIn)
	if err != nil {
		return nil, err
	}
	applyTrade(scratch, in, out, frontIn, frontOut)

	victimOut, err := curve.QuoteOutput(scratch, in, out, victimIn)
	if err != nil {
		return nil, err
	}
	applyTrade(scratch, in, out, victimIn, victimOut)

	backOut, err := curve.QuoteOutput(scratch, out, in, frontOut)
	if err != nil {
		return nil, err
	}
	return &sandwichResult{frontOut: frontOut, victimOut: victimOut, backOut: backOut}, nil
}

// applyTrade shifts normalized amounts into the raw reserves of a scratch
// pool copy.
func applyTrade(pool *types.Pool, in, out int, amountIn, amountOut float64) {
	addNormalized(pool, in, amountIn)
	addNormalized(pool, out, -amountOut)
	pool.BlockHeight++
}

func addNormalized(pool *types.Pool, idx int, delta float64) {
	scaled := new(big.Float).Mul(big.NewFloat(delta), big.NewFloat(math.Pow10(int(pool.Decimals[idx]))))
	raw, _ := scaled.Int(nil)
	pool.Reserves[idx].Add(pool.Reserves[idx], raw)
}

func poolDecimals(pool *types.Pool, idx int) uint8 {
	if idx < 0 || idx >= len(pool.Decimals) {
		return 18
	}
	return pool.Decimals[idx]
}
