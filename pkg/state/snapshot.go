package state

import (
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// snapshot is a point-in-time read view. It holds no copies: lookups walk
// each key's version chain for the latest version at or below the snapshot
// height, so concurrent writes at higher heights are never observed.
type snapshot struct {
	store  *Store
	height uint64
	hash   common.Hash
}

func (s *snapshot) Height() uint64    { return s.height }
func (s *snapshot) Hash() common.Hash { return s.hash }

func (s *snapshot) Pool(id string) (*types.Pool, bool) {
	hist, ok := s.store.pools.Load(id)
	if !ok {
		return nil, false
	}
	v, ok := hist.latestAtOrBelow(s.height)
	if !ok {
		return nil, false
	}
	return v.value, true
}

func (s *snapshot) Position(id string) (*types.Position, bool) {
	hist, ok := s.store.positions.Load(id)
	if !ok {
		return nil, false
	}
	v, ok := hist.latestAtOrBelow(s.height)
	if !ok {
		return nil, false
	}
	return v.value, true
}

func (s *snapshot) PoolsTouching(token common.Address) []*types.Pool {
	ids, ok := s.store.byToken.Load(token)
	if !ok {
		return nil
	}
	pools := make([]*types.Pool, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Pool(id); ok {
			pools = append(pools, p)
		}
	}
	return pools
}

func (s *snapshot) PriceUSD(token common.Address) (float64, time.Time, bool) {
	return s.store.prices.USDPrice(token)
}
