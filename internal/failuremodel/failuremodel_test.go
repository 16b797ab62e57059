package failuremodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoskonzen/trustedge/internal/world"
)

func boundedModel() *world.FailureModel {
	return &world.FailureModel{
		ID:                      1,
		Kind:                    world.FailureBoundedUniform,
		NumberOfFailures:        world.IntBounds{Lower: 1, Upper: 3},
		FailureDuration:         world.IntBounds{Lower: 5, Upper: 10},
		IntervalBetweenFailures: world.IntBounds{Lower: 20, Upper: 40},
		IntervalBetweenSets:     world.IntBounds{Lower: 50, Upper: 100},
	}
}

func weibullModel() *world.FailureModel {
	return &world.FailureModel{
		ID:                 2,
		Kind:               world.FailureWeibullLognormal,
		NumberOfFailures:   world.IntBounds{Lower: 1, Upper: 1},
		TimeToFailureShape: 1.5,
		TimeToFailureScale: 100,
		TimeToRepairShape:  0.5,
		TimeToRepairScale:  2,
		TimeToRepairMax:    150,
	}
}

func TestGenerateSet_BoundedUniform_RecordsAreOrderedAndFuture(t *testing.T) {
	m := boundedModel()
	g := NewGenerator(42, m)

	g.GenerateSet(0, 1, 3)

	require.Len(t, m.FailureTrace, 1)
	group := m.FailureTrace[0]
	require.NotEmpty(t, group)

	for i, rec := range group {
		assert.Greater(t, rec.FailureStartsAt, 0, "failure must be strictly future")
		assert.LessOrEqual(t, rec.FailureStartsAt, rec.FailureEndsAt)
		assert.LessOrEqual(t, rec.FailureEndsAt, rec.StartsBootingAt)
		assert.LessOrEqual(t, rec.StartsBootingAt, rec.FinishesBootingAt)
		assert.Equal(t, rec.FinishesBootingAt, rec.BecomesAvailableAt)
		if i > 0 {
			assert.Greater(t, rec.FailureStartsAt, group[i-1].BecomesAvailableAt)
		}
	}
}

func TestGenerateSet_SnapsForwardWhenStartWouldBePast(t *testing.T) {
	m := boundedModel()
	g := NewGenerator(7, m)

	g.GenerateSet(100, 1, 3) // nextStart=1 is already in the past relative to step 100

	rec := m.FailureTrace[0][0]
	assert.Equal(t, 102, rec.FailureStartsAt)
}

func TestGenerateSet_StopsWhenLastFailureIsInfinite(t *testing.T) {
	m := boundedModel()
	m.FailureTrace = [][]world.FailureRecord{
		{{FailureStartsAt: 5, BecomesAvailableAt: InfiniteStep}},
	}
	g := NewGenerator(1, m)

	g.GenerateSet(10, 50, 3)

	assert.Len(t, m.FailureTrace, 1, "should not append a new group after an infinite failure")
}

func TestOngoingFailure(t *testing.T) {
	m := &world.FailureModel{
		FailureTrace: [][]world.FailureRecord{
			{{FailureStartsAt: 10, BecomesAvailableAt: 20}},
		},
	}

	_, ok := OngoingFailure(m, 9)
	assert.False(t, ok)

	rec, ok := OngoingFailure(m, 10)
	assert.True(t, ok)
	assert.Equal(t, 10, rec.FailureStartsAt)

	_, ok = OngoingFailure(m, 20)
	assert.False(t, ok, "becomes_available_at is exclusive")
}

func TestResolveStatus_TransitionsAndRecordsHistory(t *testing.T) {
	m := &world.FailureModel{
		FailureTrace: [][]world.FailureRecord{
			{{FailureStartsAt: 10, FailureEndsAt: 15, StartsBootingAt: 15, FinishesBootingAt: 18, BecomesAvailableAt: 18}},
		},
	}

	assert.Equal(t, world.StatusAvailable, ResolveStatus(m, 9))
	assert.Equal(t, world.StatusFailing, ResolveStatus(m, 10))
	assert.Equal(t, world.StatusFailing, ResolveStatus(m, 14))
	assert.Equal(t, world.StatusBooting, ResolveStatus(m, 15))

	assert.Empty(t, m.FailureHistory)
	assert.Equal(t, world.StatusBooting, ResolveStatus(m, 17))
	require.Len(t, m.FailureHistory, 1)
	assert.Equal(t, world.StatusAvailable, ResolveStatus(m, 18))
}

func TestWeibullSampler_ProducesPositiveValues(t *testing.T) {
	m := weibullModel()
	s := NewSampler(1, m.ID)

	for i := 0; i < 100; i++ {
		v := s.weibull(m.TimeToFailureShape, m.TimeToFailureScale)
		assert.Greater(t, v, 0.0)
	}
}

func TestLognormalSampler_ClipsToMax(t *testing.T) {
	s := NewSampler(1, 1)

	for i := 0; i < 1000; i++ {
		v := s.lognormal(5, 5, lognormalRepairClip)
		assert.LessOrEqual(t, v, lognormalRepairClip)
	}
}

func TestNewSampler_DeterministicForSameSeedAndModel(t *testing.T) {
	a := NewSampler(99, 3)
	b := NewSampler(99, 3)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.rng.Float64(), b.rng.Float64())
	}
}

func TestNextPlannedStart(t *testing.T) {
	m := &world.FailureModel{
		FailureTrace: [][]world.FailureRecord{
			{{FailureStartsAt: 30}, {FailureStartsAt: 60}},
		},
	}

	next, ok := NextPlannedStart(m, 10)
	require.True(t, ok)
	assert.Equal(t, 30, next)

	_, ok = NextPlannedStart(m, 100)
	assert.False(t, ok)
}
