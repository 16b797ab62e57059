package reliability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcoskonzen/trustedge/internal/world"
)

func TestCompute_NeverFailed(t *testing.T) {
	m := &world.FailureModel{}

	s := Compute(m, 100, 0)

	assert.Equal(t, 0.0, s.MTTR)
	assert.True(t, math.IsInf(s.MTBF, 1))
	assert.Equal(t, 0.0, s.FailureRate)
	assert.True(t, math.IsInf(s.TimeSinceLastRepair, 1))
	assert.Equal(t, 0.0, s.RiskScore)
}

func TestCompute_CurrentlyFailing(t *testing.T) {
	m := &world.FailureModel{
		FailureHistory: []world.FailureRecord{
			{FailureStartsAt: 10, BecomesAvailableAt: 20},
		},
		FailureTrace: [][]world.FailureRecord{
			{{FailureStartsAt: 50, BecomesAvailableAt: 60}},
		},
	}

	s := Compute(m, 55, 0)

	assert.Equal(t, 0.0, s.TimeSinceLastRepair)
	assert.True(t, math.IsInf(s.RiskScore, 1))
}

func TestCompute_HistoryProducesFiniteStats(t *testing.T) {
	m := &world.FailureModel{
		FailureHistory: []world.FailureRecord{
			{FailureStartsAt: 10, BecomesAvailableAt: 20},
			{FailureStartsAt: 40, BecomesAvailableAt: 45},
		},
	}

	s := Compute(m, 100, 0)

	assert.Equal(t, 7.5, s.MTTR) // (10+5)/2
	assert.Equal(t, 15.0, s.DowntimeHistory)
	assert.False(t, math.IsInf(s.MTBF, 1))
	assert.Greater(t, s.FailureRate, 0.0)
	assert.Equal(t, float64(101-45), s.TimeSinceLastRepair)
	assert.Greater(t, s.RiskScore, 0.0)
}

func TestConditionalReliability(t *testing.T) {
	assert.InDelta(t, 100.0, ConditionalReliability(0, 10), 0.0001)

	r := ConditionalReliability(0.01, 10)
	assert.Greater(t, r, 0.0)
	assert.Less(t, r, 100.0)
}

func TestCompute_ConditionalReliabilityClosure(t *testing.T) {
	m := &world.FailureModel{
		FailureHistory: []world.FailureRecord{
			{FailureStartsAt: 10, BecomesAvailableAt: 20},
		},
	}
	s := Compute(m, 100, 0)

	got := s.ConditionalReliability(5)
	want := ConditionalReliability(s.FailureRate, 5)
	assert.Equal(t, want, got)
}
