package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a collateralized debt position on a lending protocol.
type Position struct {
	ID       string         `json:"id"`
	Owner    common.Address `json:"owner"`
	Protocol string         `json:"protocol"`

	Collateral []AssetAmount `json:"collateral"`
	Debt       []AssetAmount `json:"debt"`

	// LiquidationThreshold scales collateral value when computing the
	// health factor; LiquidationBonus is the liquidator's discount.
	LiquidationThreshold float64 `json:"liquidationThreshold"`
	LiquidationBonus     float64 `json:"liquidationBonus"`

	BlockHeight uint64      `json:"blockHeight"`
	BlockHash   common.Hash `json:"blockHash"`
}

// Touches reports whether the position's valuation depends on the token.
func (p *Position) Touches(token common.Address) bool {
	for _, c := range p.Collateral {
		if c.Token == token {
			return true
		}
	}
	for _, d := range p.Debt {
		if d.Token == token {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	cp := *p
	cp.Collateral = cloneAssets(p.Collateral)
	cp.Debt = cloneAssets(p.Debt)
	return &cp
}

func cloneAssets(in []AssetAmount) []AssetAmount {
	out := make([]AssetAmount, len(in))
	for i, a := range in {
		out[i] = a
		if a.Amount != nil {
			out[i].Amount = new(big.Int).Set(a.Amount)
		}
	}
	return out
}
