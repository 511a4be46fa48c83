package strategy

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	usdcAddr = common.HexToAddress("0x01")
	wethAddr = common.HexToAddress("0x02")
	daiAddr  = common.HexToAddress("0x03")
)

func raw(t *testing.T, amount float64, decimals uint8) *big.Int {
	t.Helper()
	f := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(math.Pow10(int(decimals))))
	i, _ := f.Int(nil)
	return i
}

func testPool(id string, tokens []common.Address, decimals []uint8, feeBps uint32) *types.Pool {
	reserves := make([]*big.Int, len(tokens))
	for i := range reserves {
		reserves[i] = big.NewInt(0)
	}
	return &types.Pool{
		ID:          id,
		Protocol:    "uniswap-v2",
		Kind:        types.PoolConstantProduct,
		Tokens:      tokens,
		Decimals:    decimals,
		FeeBps:      feeBps,
		Reserves:    reserves,
		BlockHeight: 1,
		BlockHash:   common.HexToHash("0xaa"),
	}
}

func applyReserves(t *testing.T, store *state.Store, poolID string, height uint64, reserves ...*big.Int) {
	t.Helper()
	require.NoError(t, store.ApplyReserves(&types.ReserveUpdate{
		PoolID:      poolID,
		BlockHeight: height,
		BlockHash:   common.HexToHash("0xbb"),
		Reserves:    reserves,
		Timestamp:   time.Now(),
	}))
}

// newTriangleStore builds a three-pool cycle over USDC, WETH and DAI with
// USDC pinned at $1. With wethDai = 2_100_000 the spot rate product around
// the cycle is 1.05.
func newTriangleStore(t *testing.T, wethDai float64) (*state.Store, interfaces.Snapshot) {
	t.Helper()
	store := state.NewStore(zap.NewNop(), state.NewPriceIndex(map[common.Address]float64{usdcAddr: 1}), 0)

	p1 := testPool("p1", []common.Address{usdcAddr, wethAddr}, []uint8{6, 18}, 0)
	p2 := testPool("p2", []common.Address{wethAddr, daiAddr}, []uint8{18, 18}, 0)
	p3 := testPool("p3", []common.Address{daiAddr, usdcAddr}, []uint8{18, 6}, 0)
	for _, p := range []*types.Pool{p1, p2, p3} {
		require.NoError(t, store.RegisterPool(p))
	}

	applyReserves(t, store, "p1", 2, raw(t, 2_000_000, 6), raw(t, 1_000, 18))
	applyReserves(t, store, "p2", 2, raw(t, 1_000, 18), raw(t, wethDai, 18))
	applyReserves(t, store, "p3", 2, raw(t, 2_000_000, 18), raw(t, 2_000_000, 6))

	snap, err := store.Snapshot(2)
	require.NoError(t, err)
	return store, snap
}

func testGasOracle(t *testing.T) interfaces.GasOracle {
	t.Helper()
	// 20 gwei at $2500 native: one swap hop costs $6.
	return profit.NewGasEstimator(profit.GasConfig{
		BaseGasPriceGwei: 20,
		EWMAAlpha:        0.2,
		NativeTokenUSD:   2500,
	}, nil)
}

// cpOut is the zero-fee constant product output used to derive expected
// values independently of the amm package.
func cpOut(rIn, rOut, in float64) float64 {
	return rOut * in / (rIn + in)
}
