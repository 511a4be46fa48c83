package profit

import (
	"time"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// Valuer values token amounts in USD against the price oracle, tracking how
// stale the underlying price is so detectors can degrade confidence.
type Valuer struct {
	oracle interfaces.PriceOracle
}

// NewValuer wraps a price oracle.
func NewValuer(oracle interfaces.PriceOracle) *Valuer {
	return &Valuer{oracle: oracle}
}

// ValueUSD converts a normalized token amount to USD. Returns the valuation,
// the age of the price used, and whether a price was known at all.
func (v *Valuer) ValueUSD(token common.Address, amount float64) (float64, time.Duration, bool) {
	price, at, ok := v.oracle.USDPrice(token)
	if !ok {
		return 0, 0, false
	}
	return amount * price, time.Since(at), true
}

// ValueAssetsUSD sums a basket's USD value. The staleness of the result is
// the staleness of its oldest price. ok is false when any leg is unpriced.
func (v *Valuer) ValueAssetsUSD(assets []types.AssetAmount) (float64, time.Duration, bool) {
	var total float64
	var oldest time.Duration
	for _, a := range assets {
		val, age, ok := v.ValueUSD(a.Token, a.Normalized())
		if !ok {
			return 0, 0, false
		}
		total += val
		if age > oldest {
			oldest = age
		}
	}
	return total, oldest, true
}

// StalenessConfidence maps a price age to a confidence multiplier in [0,1]:
// 1 when fresh, linearly decaying to 0 at the staleness bound.
func StalenessConfidence(age, bound time.Duration) float64 {
	if bound <= 0 || age <= 0 {
		return 1
	}
	if age >= bound {
		return 0
	}
	return 1 - float64(age)/float64(bound)
}
