package types

import (
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OpportunityType classifies a detected MEV opportunity.
type OpportunityType string

const (
	OpportunityArbitrage   OpportunityType = "arbitrage"
	OpportunityLiquidation OpportunityType = "liquidation"
	OpportunitySandwich    OpportunityType = "sandwich"
)

// TradeStep is one pool touch in the ordered sequence required to realize
// an opportunity. Amounts are in normalized token units.
type TradeStep struct {
	PoolID    string         `json:"poolId"`
	Protocol  string         `json:"protocol"`
	TokenIn   common.Address `json:"tokenIn"`
	TokenOut  common.Address `json:"tokenOut"`
	AmountIn  float64        `json:"amountIn"`
	AmountOut float64        `json:"amountOut"`
}

// MEVOpportunity is the scored, deduplicated record emitted to the sink.
type MEVOpportunity struct {
	ID          string          `json:"id"`
	Type        OpportunityType `json:"type"`
	Protocols   []string        `json:"protocols"`
	InvolvedIDs []string        `json:"involvedTxIds"`
	Steps       []TradeStep     `json:"steps,omitempty"`

	GrossProfitUSD float64 `json:"grossProfitUsd"`
	GasCostUSD     float64 `json:"gasCostUsd"`
	NetProfitUSD   float64 `json:"netProfitUsd"`
	Confidence     float64 `json:"confidence"`

	DetectedAt        time.Time   `json:"detectedAt"`
	SourceBlockHeight uint64      `json:"sourceBlockHeight"`
	SourceBlockHash   common.Hash `json:"sourceBlockHash"`
	DedupKey          string      `json:"dedupKey"`

	// Invalidated is set when the source block is orphaned by a reorg.
	Invalidated bool `json:"invalidated,omitempty"`
}

// ComputeDedupKey derives the canonical dedup key from the opportunity type
// and the sorted set of involved transaction/pool identifiers.
func ComputeDedupKey(typ OpportunityType, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return string(typ) + ":" + strings.Join(sorted, "|")
}
