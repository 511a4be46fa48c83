package types

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind identifies the AMM pricing model a pool uses.
type PoolKind string

const (
	PoolConstantProduct PoolKind = "constant-product"
	PoolStableSwap      PoolKind = "stable-swap"
	PoolConcentrated    PoolKind = "concentrated-liquidity"
)

// Pool is the on-chain state of one AMM pool. Reserves are mutated only by
// the world state store on confirmed reserve-changing events; every mutation
// is tagged with the block that produced it.
type Pool struct {
	ID       string           `json:"id"`
	Protocol string           `json:"protocol"`
	Kind     PoolKind         `json:"kind"`
	Tokens   []common.Address `json:"tokens"`
	Decimals []uint8          `json:"decimals"`
	FeeBps   uint32           `json:"feeBps"`
	// AmpFactor is the amplification coefficient for stable-swap pools.
	AmpFactor   float64     `json:"ampFactor,omitempty"`
	Reserves    []*big.Int  `json:"reserves"`
	BlockHeight uint64      `json:"blockHeight"`
	BlockHash   common.Hash `json:"blockHash"`
}

// TokenIndex returns the position of token in the pool's token set, or -1.
func (p *Pool) TokenIndex(token common.Address) int {
	for i, t := range p.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// ReserveOf returns the normalized reserve of the given token index.
func (p *Pool) ReserveOf(i int) float64 {
	if i < 0 || i >= len(p.Reserves) || p.Reserves[i] == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(p.Reserves[i]).Float64()
	return f / math.Pow10(int(p.Decimals[i]))
}

// Fee returns the swap fee as a fraction (30 bps -> 0.003).
func (p *Pool) Fee() float64 {
	return float64(p.FeeBps) / 10000
}

// Clone returns a deep copy safe to mutate without affecting readers of the
// original version.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.Tokens = append([]common.Address(nil), p.Tokens...)
	cp.Decimals = append([]uint8(nil), p.Decimals...)
	cp.Reserves = make([]*big.Int, len(p.Reserves))
	for i, r := range p.Reserves {
		if r != nil {
			cp.Reserves[i] = new(big.Int).Set(r)
		}
	}
	return &cp
}
