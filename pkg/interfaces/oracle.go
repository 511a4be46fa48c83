package interfaces

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceOracle values tokens in USD. The engine's price index implements it;
// an external feed may replace it.
type PriceOracle interface {
	// USDPrice returns the price, the time it was last refreshed, and
	// whether a price is known at all.
	USDPrice(token common.Address) (float64, time.Time, bool)
}

// GasOracle estimates the USD cost of gas for a trade sequence.
type GasOracle interface {
	// GasPriceGwei is the current estimate of the competitive gas price.
	GasPriceGwei() float64

	// CostUSD converts a gas amount at the current gas price into USD.
	CostUSD(gasUnits uint64) float64

	// Observe feeds an observed mempool gas price into the estimate.
	Observe(gasPriceGwei float64)
}
