package interfaces

import (
	"github.com/VrindaBansal/mevscope/pkg/types"
)

// PricingCurve prices trades against one AMM kind. Detectors depend only on
// this capability, never on a concrete pool kind. Amounts are normalized
// token units.
type PricingCurve interface {
	Kind() types.PoolKind

	// QuoteOutput returns the output amount for swapping amountIn of the
	// token at index in for the token at index out, net of fees and
	// slippage against current reserves.
	QuoteOutput(pool *types.Pool, in, out int, amountIn float64) (float64, error)

	// SpotRate returns the marginal exchange rate (out per in) for an
	// infinitesimal trade, net of fees.
	SpotRate(pool *types.Pool, in, out int) (float64, error)

	// PriceImpact returns the relative degradation of the executed price
	// versus the spot price for the given trade size, in [0, 1).
	PriceImpact(pool *types.Pool, in, out int, amountIn float64) (float64, error)
}

// CurveRegistry resolves the pricing curve for a pool kind.
type CurveRegistry interface {
	ForKind(kind types.PoolKind) (PricingCurve, bool)
}
