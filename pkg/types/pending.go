package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapIntent is the decoded call intent of a pending swap transaction.
type SwapIntent struct {
	PoolID       string         `json:"poolId"`
	TokenIn      common.Address `json:"tokenIn"`
	TokenOut     common.Address `json:"tokenOut"`
	AmountIn     *big.Int       `json:"amountIn"`
	MinAmountOut *big.Int       `json:"minAmountOut"`
	Decimals     uint8          `json:"decimals"`
}

// AmountInNormalized returns the swap input scaled by its token decimals.
func (s *SwapIntent) AmountInNormalized() float64 {
	return AssetAmount{Token: s.TokenIn, Amount: s.AmountIn, Decimals: s.Decimals}.Normalized()
}

// PendingTransaction is a mempool transaction with a decoded swap intent.
// Transient: it expires once confirmed, dropped, or older than the pool TTL.
type PendingTransaction struct {
	TxID       common.Hash    `json:"txId"`
	Sender     common.Address `json:"sender"`
	Target     common.Address `json:"target"`
	Swap       *SwapIntent    `json:"decodedSwap"`
	GasPrice   *big.Int       `json:"gasPrice"`
	ObservedAt time.Time      `json:"observedAt"`
}

// GasPriceGwei returns the offered gas price in gwei.
func (t *PendingTransaction) GasPriceGwei() float64 {
	if t.GasPrice == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(t.GasPrice).Float64()
	return f / 1e9
}
