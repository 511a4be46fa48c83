package amm

import (
	"math"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
)

const (
	defaultAmp       = 100.0
	newtonIterations = 64
	newtonTolerance  = 1e-10
)

// stableSwap prices two-token Curve-style pools via the StableSwap
// invariant, solved by Newton iteration for D and then for the output
// reserve y.
type stableSwap struct{}

// NewStableSwap returns the stable-swap pricing curve.
func NewStableSwap() interfaces.PricingCurve {
	return stableSwap{}
}

func (stableSwap) Kind() types.PoolKind { return types.PoolStableSwap }

func (s stableSwap) QuoteOutput(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	if err := validate(pool, in, out, amountIn); err != nil {
		return 0, err
	}
	amp := pool.AmpFactor
	if amp <= 0 {
		amp = defaultAmp
	}
	rIn, rOut := pool.ReserveOf(in), pool.ReserveOf(out)
	d := solveD(rIn, rOut, amp)
	effIn := amountIn * (1 - pool.Fee())
	y := solveY(rIn+effIn, d, amp)
	outAmt := rOut - y
	if outAmt <= 0 || outAmt >= rOut {
		return 0, ErrZeroReserve
	}
	return outAmt, nil
}

func (s stableSwap) SpotRate(pool *types.Pool, in, out int) (float64, error) {
	rIn := pool.ReserveOf(in)
	if rIn <= 0 || pool.ReserveOf(out) <= 0 {
		return 0, ErrZeroReserve
	}
	// Marginal rate via a small probe relative to the input reserve.
	probe := rIn * 1e-6
	outAmt, err := s.QuoteOutput(pool, in, out, probe/(1-pool.Fee()))
	if err != nil {
		return 0, err
	}
	return outAmt / (probe / (1 - pool.Fee())), nil
}

func (s stableSwap) PriceImpact(pool *types.Pool, in, out int, amountIn float64) (float64, error) {
	outAmt, err := s.QuoteOutput(pool, in, out, amountIn)
	if err != nil {
		return 0, err
	}
	spot, err := s.SpotRate(pool, in, out)
	if err != nil {
		return 0, err
	}
	impact := 1 - (outAmt/amountIn)/spot
	if impact < 0 {
		impact = 0
	}
	return impact, nil
}

// solveD finds the StableSwap invariant D for a two-token pool:
// A*n^n*S + D = A*n^n*D + D^(n+1) / (n^n * x*y), n=2.
func solveD(x, y, amp float64) float64 {
	sum := x + y
	if sum == 0 {
		return 0
	}
	ann := amp * 4
	d := sum
	for i := 0; i < newtonIterations; i++ {
		dp := d * d * d / (4 * x * y)
		next := (ann*sum + 2*dp) * d / ((ann-1)*d + 3*dp)
		if math.Abs(next-d) < newtonTolerance {
			return next
		}
		d = next
	}
	return d
}

// solveY finds the output-side reserve y satisfying the invariant for the
// new input-side reserve x.
func solveY(x, d, amp float64) float64 {
	ann := amp * 4
	c := d * d * d / (4 * x * ann)
	b := x + d/ann - d
	y := d
	for i := 0; i < newtonIterations; i++ {
		next := (y*y + c) / (2*y + b)
		if math.Abs(next-y) < newtonTolerance {
			return next
		}
		y = next
	}
	return y
}
