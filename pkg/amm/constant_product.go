package amm

import (
	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
)

// constantProduct prices x*y=k pools (Uniswap v2 style).
type constantProduct struct{}

// NewConstantProduct returns the constant-product pricing curve.
func NewConstantProduct() interfaces.PricingCurve {
	return constantProduct{}
}

func (constantProduct) Kind() types.PoolKind { return types.PoolConstantProduct }

func (constantProduct) QuoteOutput(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	if err := validate(pool, in, out, amountIn); err != nil {
		return 0, err
	}
	rIn, rOut := pool.ReserveOf(in), pool.ReserveOf(out)
	effIn := amountIn * (1 - pool.Fee())
	return rOut * effIn / (rIn + effIn), nil
}

func (constantProduct) SpotRate(pool *types.Pool, in, out int) (float64, error) {
	rIn, rOut := pool.ReserveOf(in), pool.ReserveOf(out)
	if rIn <= 0 || rOut <= 0 {
		return 0, ErrZeroReserve
	}
	return rOut / rIn * (1 - pool.Fee()), nil
}

func (c constantProduct) PriceImpact(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	outAmt, err := c.QuoteOutput(pool, in, out, amountIn)
	if err != nil {
		return 0, err
	}
	spot, err := c.SpotRate(pool, in, out)
	if err != nil {
		return 0, err
	}
	exec := outAmt / amountIn
	return 1 - exec/spot, nil
}
