// Package amm prices trades against the supported AMM kinds. Detectors use
// the PricingCurve capability only; the concrete formula is chosen by pool
// kind through the registry.
package amm

import (
	"errors"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
)

var (
	// ErrZeroReserve indicates a pool side has no liquidity; quoting
	// against it would divide by zero.
	ErrZeroReserve = errors.New("amm: zero reserve")

	// ErrBadTokenIndex indicates in/out do not address pool tokens.
	ErrBadTokenIndex = errors.New("amm: token index out of range")

	// ErrNonPositiveAmount indicates amountIn <= 0.
	ErrNonPositiveAmount = errors.New("amm: non-positive amount")
)

// Registry maps pool kinds to their pricing curves.
type Registry struct {
	curves map[types.PoolKind]interfaces.PricingCurve
}

// NewRegistry returns a registry with every supported curve installed.
func NewRegistry() *Registry {
	r := &Registry{curves: make(map[types.PoolKind]interfaces.PricingCurve)}
	for _, c := range []interfaces.PricingCurve{
		NewConstantProduct(),
		NewStableSwap(),
		NewConcentratedLiquidity(),
	} {
		r.curves[c.Kind()] = c
	}
	return r
}

// ForKind resolves the curve for a pool kind.
func (r *Registry) ForKind(kind types.PoolKind) (interfaces.PricingCurve, bool) {
	c, ok := r.curves[kind]
	return c, ok
}

func validate(pool *types.Pool, in, out int, amountIn float64) error {
	if in < 0 || out < 0 || in >= len(pool.Reserves) || out >= len(pool.Reserves) || in == out {
		return ErrBadTokenIndex
	}
	if amountIn <= 0 {
		return ErrNonPositiveAmount
	}
	if pool.ReserveOf(in) <= 0 || pool.ReserveOf(out) <= 0 {
		return ErrZeroReserve
	}
	return nil
}
