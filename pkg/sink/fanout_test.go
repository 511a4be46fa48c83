package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	name string
	err  error
	got  []*types.MEVOpportunity
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, opp *types.MEVOpportunity) error {
	r.got = append(r.got, opp)
	return r.err
}

func TestFanoutReachesAllChildren(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	f := NewFanout(zap.NewNop(), a, b)

	opp := &types.MEVOpportunity{ID: "x", Type: types.OpportunityArbitrage}
	require.NoError(t, f.Publish(context.Background(), opp))
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestFanoutContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{name: "a", err: boom}
	b := &recordingSink{name: "b"}
	f := NewFanout(zap.NewNop(), a, b)

	err := f.Publish(context.Background(), &types.MEVOpportunity{ID: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// The failing child never blocks the healthy one.
	assert.Len(t, b.got, 1)
}

func TestLogSinkNeverFails(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	assert.NoError(t, s.Publish(context.Background(), &types.MEVOpportunity{
		ID:   "x",
		Type: types.OpportunitySandwich,
	}))
	assert.Equal(t, "log", s.Name())
}
