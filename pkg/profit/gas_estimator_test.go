package profit

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticOracle struct {
	prices map[common.Address]float64
	at     time.Time
}

func (o *staticOracle) USDPrice(tok common.Address) (float64, time.Time, bool) {
	p, ok := o.prices[tok]
	return p, o.at, ok
}

func TestGasEstimatorDefaultsAndEWMA(t *testing.T) {
	e := NewGasEstimator(GasConfig{}, nil)
	assert.InDelta(t, 20, e.GasPriceGwei(), 1e-9)

	e.Observe(120)
	// alpha 0.2: 0.2*120 + 0.8*20 = 40
	assert.InDelta(t, 40, e.GasPriceGwei(), 1e-9)

	e.Observe(-5) // ignored
	assert.InDelta(t, 40, e.GasPriceGwei(), 1e-9)
}

func TestCostUSDUsesOraclePrice(t *testing.T) {
	native := common.HexToAddress("0xee")
	oracle := &staticOracle{prices: map[common.Address]float64{native: 2000}, at: time.Now()}
	e := NewGasEstimator(GasConfig{BaseGasPriceGwei: 50, NativeToken: native}, oracle)

	// 120k gas at 50 gwei = 0.006 native = $12 at $2000.
	assert.InDelta(t, 12.0, e.CostUSD(GasPerSwapHop), 1e-9)
}

func TestCostUSDFallsBackWithoutOracle(t *testing.T) {
	e := NewGasEstimator(GasConfig{BaseGasPriceGwei: 50, NativeTokenUSD: 1000}, nil)
	assert.InDelta(t, 6.0, e.CostUSD(GasPerSwapHop), 1e-9)
}

func TestStalenessConfidence(t *testing.T) {
	bound := 10 * time.Second
	assert.InDelta(t, 1.0, StalenessConfidence(0, bound), 1e-9)
	assert.InDelta(t, 0.5, StalenessConfidence(5*time.Second, bound), 1e-9)
	assert.InDelta(t, 0.0, StalenessConfidence(15*time.Second, bound), 1e-9)
}

func TestValuerBasket(t *testing.T) {
	weth := common.HexToAddress("0x01")
	usdc := common.HexToAddress("0x02")
	oracle := &staticOracle{
		prices: map[common.Address]float64{weth: 2000, usdc: 1},
		at:     time.Now().Add(-2 * time.Second),
	}
	v := NewValuer(oracle)

	val, age, ok := v.ValueUSD(weth, 1.5)
	require.True(t, ok)
	assert.InDelta(t, 3000, val, 1e-9)
	assert.Greater(t, age, time.Second)

	_, _, ok = v.ValueUSD(common.HexToAddress("0x03"), 1)
	assert.False(t, ok)
}
