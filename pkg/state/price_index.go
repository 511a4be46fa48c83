package state

import (
	"sync"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceIndex tracks token USD valuations. Reference tokens carry a fixed
// configured price (stables at 1.0, or a pinned native price); every other
// token is priced from pool reserves against a reference token as reserve
// updates arrive. An external feed can override any price directly.
type PriceIndex struct {
	mu     sync.RWMutex
	refs   map[common.Address]float64
	prices map[common.Address]pricePoint
}

// NewPriceIndex creates an index seeded with the given reference prices.
func NewPriceIndex(refs map[common.Address]float64) *PriceIndex {
	idx := &PriceIndex{
		refs:   make(map[common.Address]float64, len(refs)),
		prices: make(map[common.Address]pricePoint, len(refs)),
	}
	now := time.Now()
	for tok, price := range refs {
		idx.refs[tok] = price
		idx.prices[tok] = pricePoint{price: price, at: now}
	}
	return idx
}

// SetPrice installs a direct feed price.
func (x *PriceIndex) SetPrice(token common.Address, price float64, at time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.prices[token] = pricePoint{price: price, at: at}
}

// USDPrice implements interfaces.PriceOracle.
func (x *PriceIndex) USDPrice(token common.Address) (float64, time.Time, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.prices[token]
	if !ok {
		return 0, time.Time{}, false
	}
	return p.price, p.at, true
}

// ObservePool derives prices from the pool's current reserves, stamped now.
func (x *PriceIndex) ObservePool(pool *types.Pool) {
	x.ObservePoolAt(pool, time.Now())
}

// ObservePoolAt derives prices from a two-token pool pairing a reference
// token: price(other) = reserveRef/reserveOther * refPrice. Pools without a
// reference side are ignored; cascading valuations are an external feed's
// job, not the index's.
func (x *PriceIndex) ObservePoolAt(pool *types.Pool, at time.Time) {
	if len(pool.Tokens) != 2 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	for ref := 0; ref < 2; ref++ {
		refPrice, ok := x.refs[pool.Tokens[ref]]
		if !ok {
			continue
		}
		other := 1 - ref
		if _, alsoRef := x.refs[pool.Tokens[other]]; alsoRef {
			continue
		}
		rRef, rOther := pool.ReserveOf(ref), pool.ReserveOf(other)
		if rRef <= 0 || rOther <= 0 {
			continue
		}
		x.prices[pool.Tokens[other]] = pricePoint{price: rRef / rOther * refPrice, at: at}
	}
	// Reference tokens stay fresh as long as any of their pools trade.
	for _, tok := range pool.Tokens {
		if price, ok := x.refs[tok]; ok {
			x.prices[tok] = pricePoint{price: price, at: at}
		}
	}
}

// Rebuild recomputes every derived price from the given pool set. Called
// after a rollback so orphaned reserve updates stop influencing valuations.
func (x *PriceIndex) Rebuild(pools []*types.Pool) {
	x.mu.Lock()
	derived := make([]common.Address, 0, len(x.prices))
	for tok := range x.prices {
		if _, ok := x.refs[tok]; !ok {
			derived = append(derived, tok)
		}
	}
	for _, tok := range derived {
		delete(x.prices, tok)
	}
	x.mu.Unlock()

	now := time.Now()
	for _, pool := range pools {
		x.ObservePoolAt(pool, now)
	}
}
