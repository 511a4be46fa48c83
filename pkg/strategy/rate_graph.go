package strategy

import (
	"math"

	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// rateEdge is one directed swap through one pool. Weight is the negative
// natural log of the fee-adjusted spot rate, so multiplicative rate
// composition becomes additive cost and a profitable cycle has negative
// total weight.
type rateEdge struct {
	from, to int
	weight   float64
	pool     *types.Pool
	inIdx    int
	outIdx   int
}

// rateGraph is the exchange-rate graph restricted to the subgraph affected
// by one update: the updated pool's tokens plus their direct neighbors.
type rateGraph struct {
	tokens []common.Address
	index  map[common.Address]int
	edges  []rateEdge
}

// buildAffectedGraph constructs the affected subgraph from a snapshot.
// Seeds are the tokens of the pool that triggered detection.
func buildAffectedGraph(snap interfaces.Snapshot, curves interfaces.CurveRegistry, seeds []common.Address) *rateGraph {
	g := &rateGraph{index: make(map[common.Address]int)}

	include := func(tok common.Address) int {
		if i, ok := g.index[tok]; ok {
			return i
		}
		i := len(g.tokens)
		g.index[tok] = i
		g.tokens = append(g.tokens, tok)
		return i
	}

	// Seed tokens plus one-hop neighbors bound the search to the part of
	// the graph the triggering update could have changed.
	seen := make(map[string]*types.Pool)
	for _, seed := range seeds {
		include(seed)
		for _, pool := range snap.PoolsTouching(seed) {
			if _, dup := seen[pool.ID]; dup {
				continue
			}
			seen[pool.ID] = pool
			for _, tok := range pool.Tokens {
				include(tok)
			}
		}
	}
	// Pools connecting any two included tokens, including neighbor-to-
	// neighbor closures that complete cycles back to a seed.
	for _, tok := range g.tokens {
		for _, pool := range snap.PoolsTouching(tok) {
			if _, dup := seen[pool.ID]; dup {
				continue
			}
			inGraph := 0
			for _, pt := range pool.Tokens {
				if _, ok := g.index[pt]; ok {
					inGraph++
				}
			}
			if inGraph >= 2 {
				seen[pool.ID] = pool
			}
		}
	}

	for _, pool := range seen {
		curve, ok := curves.ForKind(pool.Kind)
		if !ok {
			continue
		}
		for in := range pool.Tokens {
			for out := range pool.Tokens {
				if in == out {
					continue
				}
				fromIdx, okFrom := g.index[pool.Tokens[in]]
				toIdx, okTo := g.index[pool.Tokens[out]]
				if !okFrom || !okTo {
					continue
				}
				rate, err := curve.SpotRate(pool, in, out)
				if err != nil || rate <= 0 {
					continue
				}
				g.edges = append(g.edges, rateEdge{
					from:   fromIdx,
					to:     toIdx,
					weight: -math.Log(rate),
					pool:   pool,
					inIdx:  in,
					outIdx: out,
				})
			}
		}
	}
	return g
}

// negativeCycles runs bounded Bellman-Ford relaxation and extracts distinct
// negative-weight cycles of length <= maxHops. checkpoint is consulted
// between relaxation rounds for cooperative cancellation.
func (g *rateGraph) negativeCycles(maxHops int, checkpoint func() error) ([][]rateEdge, error) {
	n := len(g.tokens)
	if n == 0 || len(g.edges) == 0 {
		return nil, nil
	}

	// All-zero initial distances find negative cycles anywhere in the
	// subgraph without choosing a source token.
	dist := make([]float64, n)
	pred := make([]int, n)
	for i := range pred {
		pred[i] = -1
	}

	for round := 0; round < maxHops; round++ {
		if err := checkpoint(); err != nil {
			return nil, err
		}
		improved := false
		for ei, e := range g.edges {
			if dist[e.from]+e.weight < dist[e.to]-1e-12 {
				dist[e.to] = dist[e.from] + e.weight
				pred[e.to] = ei
				improved = true
			}
		}
		if !improved {
			return nil, nil
		}
	}

	if err := checkpoint(); err != nil {
		return nil, err
	}

	var cycles [][]rateEdge
	emitted := make(map[string]bool)
	for _, e := range g.edges {
		if dist[e.from]+e.weight >= dist[e.to]-1e-12 {
			continue
		}
		cycle := g.extractCycle(pred, e.to, maxHops)
		if cycle == nil {
			continue
		}
		key := cycleKey(cycle)
		if emitted[key] {
			continue
		}
		emitted[key] = true
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// extractCycle walks predecessor edges from a node known to be on or
// downstream of a negative cycle and returns the cycle's edges in trade
// order, or nil when the walk exceeds the hop bound.
func (g *rateGraph) extractCycle(pred []int, start int, maxHops int) []rateEdge {
	// Walk back enough steps to be inside the cycle.
	node := start
	for i := 0; i < len(g.tokens); i++ {
		ei := pred[node]
		if ei < 0 {
			return nil
		}
		node = g.edges[ei].from
	}

	var rev []rateEdge
	seenStart := node
	for {
		ei := pred[node]
		if ei < 0 {
			return nil
		}
		e := g.edges[ei]
		rev = append(rev, e)
		node = e.from
		if node == seenStart {
			break
		}
		if len(rev) > maxHops {
			return nil
		}
	}

	cycle := make([]rateEdge, len(rev))
	for i, e := range rev {
		cycle[len(rev)-1-i] = e
	}
	return cycle
}

// cycleKey canonicalizes a cycle to its lexicographically smallest rotation
// of pool-hop identifiers so the same cycle is not reported per entry node.
func cycleKey(cycle []rateEdge) string {
	hops := make([]string, len(cycle))
	for i, e := range cycle {
		hops[i] = e.pool.ID + ">" + e.pool.Tokens[e.inIdx].Hex()
	}
	best := ""
	for r := range hops {
		key := ""
		for i := range hops {
			key += hops[(r+i)%len(hops)] + "|"
		}
		if best == "" || key < best {
			best = key
		}
	}
	return best
}
