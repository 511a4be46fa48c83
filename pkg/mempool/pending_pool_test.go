package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pendingTx(id byte, age time.Duration) *types.PendingTransaction {
	return &types.PendingTransaction{
		TxID:       common.BytesToHash([]byte{id}),
		GasPrice:   big.NewInt(30e9),
		ObservedAt: time.Now().Add(-age),
	}
}

func TestAddAndGet(t *testing.T) {
	p := NewPendingPool(zap.NewNop(), time.Minute)
	tx := pendingTx(1, 0)
	p.Add(tx)

	got, ok := p.Get(tx.TxID)
	require.True(t, ok)
	assert.Equal(t, tx.TxID, got.TxID)
	assert.Equal(t, 1, p.Size())

	// Re-adding the same hash does not double count.
	p.Add(pendingTx(1, 0))
	assert.Equal(t, 1, p.Size())
}

func TestConfirmedTransactionIsEvicted(t *testing.T) {
	p := NewPendingPool(zap.NewNop(), time.Minute)
	tx := pendingTx(2, 0)
	p.Add(tx)

	p.MarkConfirmed(tx.TxID)
	_, ok := p.Get(tx.TxID)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Size())
}

func TestExpiredTransactionIsNotReturned(t *testing.T) {
	p := NewPendingPool(zap.NewNop(), 10*time.Second)
	tx := pendingTx(3, time.Minute)
	p.Add(tx)

	_, ok := p.Get(tx.TxID)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Size())
}

func TestEvictExpiredSweep(t *testing.T) {
	p := NewPendingPool(zap.NewNop(), 10*time.Second)
	p.Add(pendingTx(4, time.Minute))
	p.Add(pendingTx(5, 0))

	p.evictExpired()
	assert.Equal(t, 1, p.Size())
}

func TestStatsCountEvictionsByReason(t *testing.T) {
	p := NewPendingPool(zap.NewNop(), 10*time.Second)
	p.Add(pendingTx(6, 0))
	p.Add(pendingTx(7, 0))
	p.Add(pendingTx(8, time.Minute))

	p.MarkConfirmed(common.BytesToHash([]byte{6}))
	p.MarkDropped(common.BytesToHash([]byte{7}))
	p.evictExpired()

	stats := p.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(1), stats.EvictedConfirmed)
	assert.Equal(t, int64(1), stats.EvictedDropped)
	assert.Equal(t, int64(1), stats.EvictedExpired)
}
