package amm

import (
	"math"
	"math/big"
	"testing"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(kind types.PoolKind, r0, r1 float64, feeBps uint32) *types.Pool {
	toRaw := func(v float64) *big.Int {
		f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(1e18))
		i, _ := f.Int(nil)
		return i
	}
	return &types.Pool{
		ID:       "pool-1",
		Protocol: "uniswap-v2",
		Kind:     kind,
		Tokens:   []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")},
		Decimals: []uint8{18, 18},
		FeeBps:   feeBps,
		Reserves: []*big.Int{toRaw(r0), toRaw(r1)},
	}
}

func TestRegistryCoversAllKinds(t *testing.T) {
	r := NewRegistry()
	for _, kind := range []types.PoolKind{
		types.PoolConstantProduct,
		types.PoolStableSwap,
		types.PoolConcentrated,
	} {
		c, ok := r.ForKind(kind)
		require.True(t, ok, "missing curve for %s", kind)
		assert.Equal(t, kind, c.Kind())
	}

	_, ok := r.ForKind(types.PoolKind("weighted"))
	assert.False(t, ok)
}

func TestConstantProductQuote(t *testing.T) {
	curve := NewConstantProduct()
	pool := newTestPool(types.PoolConstantProduct, 1000, 2000, 30)

	out, err := curve.QuoteOutput(pool, 0, 1, 10)
	require.NoError(t, err)

	// Closed form: out = rOut * in*(1-f) / (rIn + in*(1-f)).
	effIn := 10 * (1 - 0.003)
	want := 2000 * effIn / (1000 + effIn)
	assert.InDelta(t, want, out, 1e-9)
}

func TestConstantProductSpotAndImpact(t *testing.T) {
	curve := NewConstantProduct()
	pool := newTestPool(types.PoolConstantProduct, 1000, 2000, 30)

	spot, err := curve.SpotRate(pool, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0*(1-0.003), spot, 1e-9)

	small, err := curve.PriceImpact(pool, 0, 1, 0.01)
	require.NoError(t, err)
	large, err := curve.PriceImpact(pool, 0, 1, 100)
	require.NoError(t, err)
	assert.Less(t, small, large, "impact must grow with trade size")
	assert.Greater(t, large, 0.05)
}

func TestConstantProductRejectsBadInput(t *testing.T) {
	curve := NewConstantProduct()
	pool := newTestPool(types.PoolConstantProduct, 1000, 2000, 30)

	_, err := curve.QuoteOutput(pool, 0, 1, 0)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = curve.QuoteOutput(pool, 0, 0, 10)
	assert.ErrorIs(t, err, ErrBadTokenIndex)

	empty := newTestPool(types.PoolConstantProduct, 0, 2000, 30)
	_, err = curve.QuoteOutput(empty, 0, 1, 10)
	assert.ErrorIs(t, err, ErrZeroReserve)
}

func TestStableSwapNearParityForBalancedPool(t *testing.T) {
	curve := NewStableSwap()
	pool := newTestPool(types.PoolStableSwap, 1_000_000, 1_000_000, 4)
	pool.AmpFactor = 100

	out, err := curve.QuoteOutput(pool, 0, 1, 1000)
	require.NoError(t, err)

	// A balanced high-amplification pool trades near 1:1 minus fee.
	assert.InDelta(t, 1000*(1-0.0004), out, 1.0)

	// And with far less slippage than constant product would give.
	cpOut, err := NewConstantProduct().QuoteOutput(pool, 0, 1, 1000)
	require.NoError(t, err)
	assert.Greater(t, out, cpOut)
}

func TestStableSwapImpactGrowsWhenImbalanced(t *testing.T) {
	curve := NewStableSwap()
	balanced := newTestPool(types.PoolStableSwap, 1_000_000, 1_000_000, 4)
	balanced.AmpFactor = 100
	drained := newTestPool(types.PoolStableSwap, 1_900_000, 100_000, 4)
	drained.AmpFactor = 100

	impBalanced, err := curve.PriceImpact(balanced, 0, 1, 10_000)
	require.NoError(t, err)
	impDrained, err := curve.PriceImpact(drained, 0, 1, 10_000)
	require.NoError(t, err)
	assert.Less(t, impBalanced, impDrained)
}

func TestConcentratedMatchesVirtualReserveMath(t *testing.T) {
	curve := NewConcentratedLiquidity()
	pool := newTestPool(types.PoolConcentrated, 500, 8000, 30)

	out, err := curve.QuoteOutput(pool, 0, 1, 5)
	require.NoError(t, err)

	// Within the active range the sqrt-price move equals the virtual
	// reserve closed form.
	effIn := 5 * (1 - 0.003)
	liq := math.Sqrt(500 * 8000)
	want := liq * (math.Sqrt(8000.0/500.0) - liq/(500+effIn))
	assert.InDelta(t, want, out, 1e-9)
}
