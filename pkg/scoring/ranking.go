package scoring

import (
	"sort"

	"github.com/VrindaBansal/mevscope/pkg/types"
)

// rankLess orders opportunities for consumers: net profit descending,
// confidence descending, then detection time ascending so earlier sightings
// win ties.
func rankLess(a, b *types.MEVOpportunity) bool {
	if a.NetProfitUSD != b.NetProfitUSD {
		return a.NetProfitUSD > b.NetProfitUSD
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.DetectedAt.Before(b.DetectedAt)
}

func sortRanked(opps []*types.MEVOpportunity) {
	sort.SliceStable(opps, func(i, j int) bool { return rankLess(opps[i], opps[j]) })
}
