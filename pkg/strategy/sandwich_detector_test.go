package strategy

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/amm"
	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSandwichFixture(t *testing.T) (*SandwichDetector, interfaces.Snapshot, *GasWindow) {
	t.Helper()
	store := state.NewStore(zap.NewNop(), state.NewPriceIndex(map[common.Address]float64{usdcAddr: 1}), 0)
	require.NoError(t, store.RegisterPool(testPool("p1", []common.Address{usdcAddr, wethAddr}, []uint8{6, 18}, 0)))
	applyReserves(t, store, "p1", 2, raw(t, 2_000_000, 6), raw(t, 1_000, 18))
	snap, err := store.Snapshot(2)
	require.NoError(t, err)

	window := NewGasWindow(0)
	valuer := profit.NewValuer(store.Prices())
	det := NewSandwichDetector(SandwichConfig{}, amm.NewRegistry(), valuer, testGasOracle(t), window, zap.NewNop())
	return det, snap, window
}

func victimTx(t *testing.T, amountInUSDC float64, minOutWETH float64, gasGwei int64) types.Event {
	t.Helper()
	minOut := big.NewInt(0)
	if minOutWETH > 0 {
		minOut = raw(t, minOutWETH, 18)
	}
	return types.NewPendingEvent(&types.PendingTransaction{
		TxID:   common.HexToHash("0xf00d"),
		Sender: common.HexToAddress("0xbeef"),
		Swap: &types.SwapIntent{
			PoolID:       "p1",
			TokenIn:      usdcAddr,
			TokenOut:     wethAddr,
			AmountIn:     raw(t, amountInUSDC, 6),
			MinAmountOut: minOut,
			Decimals:     6,
		},
		GasPrice:   big.NewInt(gasGwei * 1_000_000_000),
		ObservedAt: time.Now(),
	})
}

func TestSandwichDetectorProfitableVictim(t *testing.T) {
	det, snap, _ := newSandwichFixture(t)

	opps, err := det.Detect(context.Background(), victimTx(t, 50_000, 0, 30), snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, types.OpportunitySandwich, opp.Type)
	require.Len(t, opp.Steps, 2)
	assert.InEpsilon(t, 50_000.0, opp.Steps[0].AmountIn, 1e-9)

	// Replay the three legs by hand: front 50k, victim 50k, back-run the
	// front-run's output against the shifted reserves.
	frontOut := cpOut(2_000_000, 1_000, 50_000)
	victimOut := cpOut(2_000_000+50_000, 1_000-frontOut, 50_000)
	backOut := cpOut(1_000-frontOut-victimOut, 2_000_000+100_000, frontOut)
	assert.InEpsilon(t, frontOut, opp.Steps[0].AmountOut, 1e-6)
	assert.InEpsilon(t, backOut, opp.Steps[1].AmountOut, 1e-6)
	assert.InEpsilon(t, backOut-50_000, opp.GrossProfitUSD, 1e-6)
	assert.InEpsilon(t, opp.GrossProfitUSD-opp.GasCostUSD, opp.NetProfitUSD, 1e-9)

	// No prior traffic in the window, so no competition penalty.
	assert.InDelta(t, 0.9, opp.Confidence, 0.01)
	assert.Equal(t, []string{common.HexToHash("0xf00d").Hex()}, opp.InvolvedIDs)
}

func TestSandwichDetectorShrinksUnderVictimMinOut(t *testing.T) {
	det, snap, _ := newSandwichFixture(t)

	// A tight min-out forces the front-run down from 50k to 12.5k before
	// the victim still clears.
	opps, err := det.Detect(context.Background(), victimTx(t, 50_000, 23.9, 30), snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.InEpsilon(t, 12_500.0, opps[0].Steps[0].AmountIn, 1e-9)
}

func TestSandwichDetectorDropsInfeasibleVictim(t *testing.T) {
	det, snap, _ := newSandwichFixture(t)

	// Min-out above even the unsandwiched output: nothing to emit.
	opps, err := det.Detect(context.Background(), victimTx(t, 50_000, 30, 30), snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestSandwichDetectorIgnoresSmallVictims(t *testing.T) {
	det, snap, _ := newSandwichFixture(t)

	opps, err := det.Detect(context.Background(), victimTx(t, 500, 0, 30), snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestSandwichZeroConfigUsesDefaults(t *testing.T) {
	det := NewSandwichDetector(SandwichConfig{}, amm.NewRegistry(), nil, nil, nil, zap.NewNop())
	def := DefaultSandwichConfig()
	assert.Equal(t, def.CompetitionPenaltyWeight, det.cfg.CompetitionPenaltyWeight)
	assert.Equal(t, def.BaseConfidence, det.cfg.BaseConfidence)
	assert.Equal(t, def.MaxCapitalUSD, det.cfg.MaxCapitalUSD)
}

func TestSandwichDetectorCompetitionPenalty(t *testing.T) {
	det, snap, window := newSandwichFixture(t)

	// Victim's 30 gwei tops a window of cheaper traffic: full penalty.
	for i := 0; i < 10; i++ {
		window.Observe("p1", 10)
	}
	opps, err := det.Detect(context.Background(), victimTx(t, 50_000, 0, 30), snap)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.InDelta(t, 0.9*(1-0.6), opps[0].Confidence, 0.01)
}

func TestSandwichDetectorSkipsUndecodedAndUnknown(t *testing.T) {
	det, snap, _ := newSandwichFixture(t)

	opps, err := det.Detect(context.Background(), types.NewPendingEvent(&types.PendingTransaction{
		TxID: common.HexToHash("0x01"), GasPrice: big.NewInt(1),
	}), snap)
	require.NoError(t, err)
	assert.Empty(t, opps)

	ev := victimTx(t, 50_000, 0, 30)
	ev.Pending.Swap.PoolID = "nope"
	opps, err = det.Detect(context.Background(), ev, snap)
	require.NoError(t, err)
	assert.Empty(t, opps)
}
