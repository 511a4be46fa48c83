// Package profit converts detector outputs into USD profit figures: token
// valuation through the price oracle and gas costing through an adaptive
// gas price estimate.
package profit

import (
	"sync"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/ethereum/go-ethereum/common"
)

// Gas units charged per trade element. Rough per-protocol swap costs; the
// estimate only needs to be right to within the profit threshold margin.
const (
	GasPerSwapHop     = 120_000
	GasPerLiquidation = 400_000
	GasPerSandwich    = 280_000 // front-run + back-run pair
)

// GasConfig configures the estimator.
type GasConfig struct {
	// BaseGasPriceGwei seeds the estimate before any observation.
	BaseGasPriceGwei float64
	// EWMAAlpha weights new observations into the rolling estimate.
	EWMAAlpha float64
	// NativeToken is the gas token; its oracle price converts gas to USD.
	NativeToken common.Address
	// NativeTokenUSD is the fallback price when the oracle has none.
	NativeTokenUSD float64
}

// DefaultGasConfig returns mainnet-ish defaults.
func DefaultGasConfig() GasConfig {
	return GasConfig{
		BaseGasPriceGwei: 20,
		EWMAAlpha:        0.2,
		NativeTokenUSD:   2500,
	}
}

// GasEstimator tracks a rolling gas price from observed mempool traffic and
// converts gas amounts to USD. Implements interfaces.GasOracle.
type GasEstimator struct {
	cfg    GasConfig
	oracle interfaces.PriceOracle

	mu   sync.RWMutex
	gwei float64
}

// NewGasEstimator creates an estimator; oracle may be nil, falling back to
// the configured native token price.
func NewGasEstimator(cfg GasConfig, oracle interfaces.PriceOracle) *GasEstimator {
	if cfg.BaseGasPriceGwei <= 0 {
		cfg.BaseGasPriceGwei = DefaultGasConfig().BaseGasPriceGwei
	}
	if cfg.EWMAAlpha <= 0 || cfg.EWMAAlpha > 1 {
		cfg.EWMAAlpha = DefaultGasConfig().EWMAAlpha
	}
	if cfg.NativeTokenUSD <= 0 {
		cfg.NativeTokenUSD = DefaultGasConfig().NativeTokenUSD
	}
	return &GasEstimator{cfg: cfg, oracle: oracle, gwei: cfg.BaseGasPriceGwei}
}

// Observe folds an observed gas price into the rolling estimate.
func (e *GasEstimator) Observe(gasPriceGwei float64) {
	if gasPriceGwei <= 0 {
		return
	}
	e.mu.Lock()
	e.gwei = e.cfg.EWMAAlpha*gasPriceGwei + (1-e.cfg.EWMAAlpha)*e.gwei
	e.mu.Unlock()
}

// GasPriceGwei returns the current estimate.
func (e *GasEstimator) GasPriceGwei() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gwei
}

// CostUSD converts gas units at the current gas price into USD.
func (e *GasEstimator) CostUSD(gasUnits uint64) float64 {
	nativeUSD := e.cfg.NativeTokenUSD
	if e.oracle != nil {
		if p, _, ok := e.oracle.USDPrice(e.cfg.NativeToken); ok {
			nativeUSD = p
		}
	}
	return float64(gasUnits) * e.GasPriceGwei() * 1e-9 * nativeUSD
}
