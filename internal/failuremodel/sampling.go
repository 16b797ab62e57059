// Package failuremodel generates and replays the per-server failure/repair
// traces described by a world.FailureModel: bounded-uniform interval
// sampling, or Weibull time-to-failure paired with log-normal time-to-repair.
package failuremodel

import (
	"math"
	"math/rand"

	"github.com/marcoskonzen/trustedge/internal/world"
)

// lognormalRepairClip bounds a sampled repair time so a single unlucky draw
// can't stall a server for the rest of the run.
const lognormalRepairClip = 150.0

// Sampler draws failure/repair trace values for one FailureModel. It wraps a
// private *rand.Rand so two models seeded independently never share state.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler builds a sampler seeded deterministically from the run seed and
// the model's id, so the same scenario+seed always replays identically
// regardless of which models happen to be generated first.
func NewSampler(runSeed int64, modelID world.ID) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(runSeed ^ int64(modelID)*0x9E3779B97F4A7C15))}
}

func (s *Sampler) boundedInt(b world.IntBounds) int {
	if b.Infinite {
		return math.MaxInt32
	}
	if b.Upper <= b.Lower {
		return b.Lower
	}
	return b.Lower + s.rng.Intn(b.Upper-b.Lower+1)
}

// weibull samples a Weibull(shape, scale) deviate via inverse-CDF sampling.
func (s *Sampler) weibull(shape, scale float64) float64 {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	return scale * math.Pow(-math.Log(u), 1/shape)
}

// lognormal samples a log-normal(shape, scale) deviate, clipped to max.
func (s *Sampler) lognormal(shape, scale, max float64) float64 {
	v := math.Exp(s.rng.NormFloat64()*shape + scale)
	if v > max {
		return max
	}
	return v
}

func (s *Sampler) sampleFailureDuration(m *world.FailureModel) int {
	switch m.Kind {
	case world.FailureWeibullLognormal:
		d := s.lognormal(m.TimeToRepairShape, m.TimeToRepairScale, m.TimeToRepairMax)
		return int(math.Round(d))
	default:
		return s.boundedInt(m.FailureDuration)
	}
}

func (s *Sampler) sampleIntervalBetweenFailures(m *world.FailureModel) int {
	switch m.Kind {
	case world.FailureWeibullLognormal:
		return int(math.Round(s.weibull(m.TimeToFailureShape, m.TimeToFailureScale)))
	default:
		return s.boundedInt(m.IntervalBetweenFailures)
	}
}

func (s *Sampler) sampleNumberOfFailures(m *world.FailureModel) int {
	return s.boundedInt(m.NumberOfFailures)
}
