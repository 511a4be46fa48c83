package types

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes an ERC-20 style asset. Immutable once seen.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// AssetAmount pairs a token with a raw (unscaled) amount.
type AssetAmount struct {
	Token    common.Address `json:"token"`
	Amount   *big.Int       `json:"amount"`
	Decimals uint8          `json:"decimals"`
}

// Normalized returns the amount scaled down by the token's decimals.
func (a AssetAmount) Normalized() float64 {
	if a.Amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(a.Amount).Float64()
	return f / math.Pow10(int(a.Decimals))
}
