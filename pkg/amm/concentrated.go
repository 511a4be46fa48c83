package amm

import (
	"math"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
)

// concentratedLiquidity prices Uniswap v3 style pools within the active
// tick range. Reserves carried by the state store are the virtual reserves
// of that range; liquidity and sqrt price are derived from them. Trades
// that would cross a tick boundary quote against the range only, which
// overstates impact and therefore under-reports profit.
type concentratedLiquidity struct{}

// NewConcentratedLiquidity returns the concentrated-liquidity pricing curve.
func NewConcentratedLiquidity() interfaces.PricingCurve {
	return concentratedLiquidity{}
}

func (concentratedLiquidity) Kind() types.PoolKind { return types.PoolConcentrated }

func (concentratedLiquidity) QuoteOutput(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	if err := validate(pool, in, out, amountIn); err != nil {
		return 0, err
	}
	x, y := pool.ReserveOf(in), pool.ReserveOf(out)
	liq := math.Sqrt(x * y)
	sqrtP := math.Sqrt(y / x)

	effIn := amountIn * (1 - pool.Fee())
	// Adding input moves sqrt price to L / (x + dx); output is the
	// liquidity-scaled sqrt price move.
	sqrtPNext := liq / (x + effIn)
	outAmt := liq * (sqrtP - sqrtPNext)
	if outAmt <= 0 || outAmt >= y {
		return 0, ErrZeroReserve
	}
	return outAmt, nil
}

func (concentratedLiquidity) SpotRate(pool *types.Pool, in, out int) (float64, error) {
	x, y := pool.ReserveOf(in), pool.ReserveOf(out)
	if x <= 0 || y <= 0 {
		return 0, ErrZeroReserve
	}
	return y / x * (1 - pool.Fee()), nil
}

func (c concentratedLiquidity) PriceImpact(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	outAmt, err := c.QuoteOutput(pool, in, out, amountIn)
	if err != nil {
		return 0, err
	}
	spot, err := c.SpotRate(pool, in, out)
	if err != nil {
		return 0, err
	}
	return 1 - (outAmt/amountIn)/spot, nil
}
