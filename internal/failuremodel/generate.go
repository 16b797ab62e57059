package failuremodel

import (
	"math"

	"github.com/marcoskonzen/trustedge/internal/world"
)

// InfiniteStep marks a failure record boundary that never arrives: a
// declared-infinite interval_between_sets or number_of_failures bound.
const InfiniteStep = math.MaxInt32

// Generator extends a server's failure trace and answers ongoing-failure
// queries against it. One Generator is bound to one FailureModel; the
// scheduler keeps a Generator per server for the lifetime of a run so the
// underlying Sampler's RNG state persists across ticks.
type Generator struct {
	model   *world.FailureModel
	sampler *Sampler
}

func NewGenerator(runSeed int64, model *world.FailureModel) *Generator {
	return &Generator{model: model, sampler: NewSampler(runSeed, model.ID)}
}

// GenerateSet extends the model's failure_trace with a fresh group of
// failure records, unless the last planned failure is already infinite or
// the model declares an infinite interval_between_sets and already has a
// group (the first group is always generated). nextStart is the
// step at which the first failure of the new group would begin if nothing
// pushes it forward.
func (g *Generator) GenerateSet(currentStep, nextStart, timeToBoot int) {
	m := g.model

	if len(m.FailureTrace) > 0 {
		lastGroup := m.FailureTrace[len(m.FailureTrace)-1]
		last := lastGroup[len(lastGroup)-1]
		if last.BecomesAvailableAt == InfiniteStep {
			return
		}
	}
	if m.Kind == world.FailureBoundedUniform && m.IntervalBetweenSets.Infinite && len(m.FailureTrace) > 0 {
		return
	}

	n := g.sampler.sampleNumberOfFailures(m)
	if n <= 0 {
		return
	}

	group := make([]world.FailureRecord, 0, n)
	start := nextStart

	for i := 0; i < n; i++ {
		if i > 0 {
			prev := group[i-1]
			start = prev.BecomesAvailableAt + g.sampler.sampleIntervalBetweenFailures(m) + 1
		}
		// Invariant: a planned failure is always strictly in the future.
		if start <= currentStep {
			start = currentStep + 2
		}

		duration := g.sampler.sampleFailureDuration(m)
		if duration < 0 {
			duration = 0
		}

		rec := world.FailureRecord{
			FailureStartsAt: start,
			FailureDuration: duration,
			FailureEndsAt:   start + duration,
		}
		rec.StartsBootingAt = rec.FailureEndsAt
		rec.FinishesBootingAt = rec.StartsBootingAt + timeToBoot
		rec.BecomesAvailableAt = rec.FinishesBootingAt

		group = append(group, rec)
	}

	m.FailureTrace = append(m.FailureTrace, group)
}

// OngoingFailure returns the unique failure record whose interval
// [failure_starts_at, becomes_available_at) contains step, if any.
func OngoingFailure(m *world.FailureModel, step int) (world.FailureRecord, bool) {
	for _, group := range m.FailureTrace {
		for _, rec := range group {
			if step >= rec.FailureStartsAt && step < rec.BecomesAvailableAt {
				return rec, true
			}
		}
	}
	return world.FailureRecord{}, false
}

// NextPlannedStart returns the failure_starts_at of the next record still
// ahead of step, used to seed the following GenerateSet call once a trace
// runs dry.
func NextPlannedStart(m *world.FailureModel, step int) (int, bool) {
	var best int
	found := false
	for _, group := range m.FailureTrace {
		for _, rec := range group {
			if rec.FailureStartsAt > step && (!found || rec.FailureStartsAt < best) {
				best = rec.FailureStartsAt
				found = true
			}
		}
	}
	return best, found
}
