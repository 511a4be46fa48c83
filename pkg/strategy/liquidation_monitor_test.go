package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPosition(t *testing.T, collateralUSDC, debtUSDC float64) *types.Position {
	t.Helper()
	return &types.Position{
		ID:       "pos-1",
		Owner:    common.HexToAddress("0xdead"),
		Protocol: "aave-v3",
		Collateral: []types.AssetAmount{
			{Token: usdcAddr, Amount: raw(t, collateralUSDC, 6), Decimals: 6},
		},
		Debt: []types.AssetAmount{
			{Token: usdcAddr, Amount: raw(t, debtUSDC, 6), Decimals: 6},
		},
		LiquidationThreshold: 0.8,
		LiquidationBonus:     0.05,
	}
}

func applyPosition(t *testing.T, store *state.Store, pos *types.Position, height uint64) (types.Event, interfaces.Snapshot) {
	t.Helper()
	change := &types.PositionChange{
		Position:    pos,
		BlockHeight: height,
		BlockHash:   common.HexToHash("0xcc"),
		Timestamp:   time.Now(),
	}
	require.NoError(t, store.ApplyPosition(change))
	snap, err := store.Snapshot(height)
	require.NoError(t, err)
	return types.NewPositionEvent(change), snap
}

func newLiquidationFixture(t *testing.T) (*state.Store, *LiquidationMonitor) {
	t.Helper()
	store := state.NewStore(zap.NewNop(), state.NewPriceIndex(map[common.Address]float64{usdcAddr: 1}), 0)
	valuer := profit.NewValuer(store.Prices())
	mon := NewLiquidationMonitor(LiquidationConfig{}, valuer, testGasOracle(t), zap.NewNop())
	return store, mon
}

func TestLiquidationMonitorHealthyPositionSilent(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	// 150 collateral, 100 debt at 0.8 threshold: health 1.2.
	ev, snap := applyPosition(t, store, testPosition(t, 15_000, 10_000), 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestLiquidationMonitorEmitsOnCrossing(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	ev, snap := applyPosition(t, store, testPosition(t, 15_000, 10_000), 2)
	_, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)

	// Collateral falls to parity with debt: health 0.8, below the line.
	ev, snap = applyPosition(t, store, testPosition(t, 10_000, 10_000), 3)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, types.OpportunityLiquidation, opp.Type)
	assert.Equal(t, []string{"pos-1"}, opp.InvolvedIDs)
	// 5% bonus on $10k debt.
	assert.InEpsilon(t, 500.0, opp.GrossProfitUSD, 1e-9)
	assert.InEpsilon(t, 500.0-opp.GasCostUSD, opp.NetProfitUSD, 1e-9)
	assert.Greater(t, opp.Confidence, 0.9)
}

func TestLiquidationMonitorSuppressesUnchangedReEmit(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	ev, snap := applyPosition(t, store, testPosition(t, 10_000, 10_000), 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	// A reserve update on a pool sharing the position's token recomputes
	// it, but nothing moved: stay silent.
	p1 := testPool("p1", []common.Address{usdcAddr, wethAddr}, []uint8{6, 18}, 0)
	require.NoError(t, store.RegisterPool(p1))
	applyReserves(t, store, "p1", 3, raw(t, 2_000_000, 6), raw(t, 1_000, 18))
	snap, errSnap := store.Snapshot(3)
	require.NoError(t, errSnap)

	opps, err = mon.Detect(context.Background(), triggerEvent("p1", 3), snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestLiquidationMonitorReEmitsOnMaterialChange(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	ev, snap := applyPosition(t, store, testPosition(t, 10_000, 10_000), 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	// Debt grows 30%: bonus moves from $500 to $650, past the 10% gate.
	ev, snap = applyPosition(t, store, testPosition(t, 10_000, 13_000), 3)
	opps, err = mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.InEpsilon(t, 650.0, opps[0].GrossProfitUSD, 1e-9)
}

func TestLiquidationMonitorRecoveryResetsCrossing(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	ev, snap := applyPosition(t, store, testPosition(t, 10_000, 10_000), 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	// Health recovers above 1.0, then crosses again: both crossings emit
	// even though bonus and size end up unchanged.
	ev, snap = applyPosition(t, store, testPosition(t, 20_000, 10_000), 3)
	opps, err = mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Empty(t, opps)

	ev, snap = applyPosition(t, store, testPosition(t, 10_000, 10_000), 4)
	opps, err = mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestLiquidationMonitorSkipsStaleValuations(t *testing.T) {
	store, mon := newLiquidationFixture(t)
	store.Prices().SetPrice(usdcAddr, 1, time.Now().Add(-time.Minute))

	ev, snap := applyPosition(t, store, testPosition(t, 10_000, 10_000), 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestLiquidationMonitorIgnoresUnpricedTokens(t *testing.T) {
	store, mon := newLiquidationFixture(t)

	pos := testPosition(t, 10_000, 10_000)
	pos.Collateral[0].Token = common.HexToAddress("0xffff")
	ev, snap := applyPosition(t, store, pos, 2)
	opps, err := mon.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}
