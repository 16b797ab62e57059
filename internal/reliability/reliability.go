// Package reliability computes the MTTR/MTBF/risk-score statistics the
// placement policy uses to rank candidate servers and trigger proactive
// migrations.
package reliability

import (
	"math"

	"github.com/marcoskonzen/trustedge/internal/world"
)

// Stats is a snapshot of one server's reliability figures as of currentStep.
type Stats struct {
	MTTR                float64
	DowntimeHistory      float64
	UptimeHistory        float64
	MTBF                 float64 // +Inf if the server has never failed
	FailureRate          float64
	TimeSinceLastRepair  float64 // +Inf if never failed, 0 if currently failing
	RiskScore            float64 // +Inf while currently failing
	ConditionalReliability func(lookahead int) float64
}

// Compute derives Stats from a server's completed failure history.
// initialFailureTimeStep is the step the server's failure clock started
// (usually 0, or the step the server was provisioned).
func Compute(m *world.FailureModel, currentStep, initialFailureTimeStep int) Stats {
	h := m.FailureHistory

	var mttr float64
	var downtime float64
	for _, f := range h {
		downtime += float64(f.BecomesAvailableAt - f.FailureStartsAt)
	}
	if len(h) > 0 {
		mttr = downtime / float64(len(h))
	}

	uptime := math.Abs(float64(initialFailureTimeStep-(currentStep+1))) + 1 - downtime

	var mtbf float64
	if len(h) > 0 {
		mtbf = uptime / float64(len(h))
	} else {
		mtbf = math.Inf(1)
	}

	failureRate := 0.0
	if !math.IsInf(mtbf, 1) && mtbf != 0 {
		failureRate = 1 / mtbf
	}

	timeSinceRepair := math.Inf(1)
	_, failing := failuremodelOngoing(m, currentStep)
	switch {
	case failing:
		timeSinceRepair = 0
	case len(h) > 0:
		timeSinceRepair = float64((currentStep + 1) - h[len(h)-1].BecomesAvailableAt)
	}

	riskScore := 0.0
	switch {
	case len(h) == 0:
		riskScore = 0
	case timeSinceRepair == 0:
		riskScore = math.Inf(1)
	default:
		riskScore = failureRate * (timeSinceRepair / mtbf)
	}

	s := Stats{
		MTTR:                mttr,
		DowntimeHistory:     downtime,
		UptimeHistory:       uptime,
		MTBF:                mtbf,
		FailureRate:         failureRate,
		TimeSinceLastRepair: timeSinceRepair,
		RiskScore:           riskScore,
	}
	s.ConditionalReliability = func(lookahead int) float64 {
		return ConditionalReliability(failureRate, lookahead)
	}
	return s
}

// ConditionalReliability is the probability (as a percentage) that a server
// with the given failure_rate survives lookahead more steps without failing,
// under the exponential (constant-hazard) assumption.
func ConditionalReliability(failureRate float64, lookahead int) float64 {
	return math.Exp(-failureRate*float64(lookahead)) * 100
}

// failuremodelOngoing reimplements failuremodel.OngoingFailure's one-line
// scan locally so this package depends only on world, not on failuremodel.
func failuremodelOngoing(m *world.FailureModel, step int) (world.FailureRecord, bool) {
	for _, group := range m.FailureTrace {
		for _, rec := range group {
			if step >= rec.FailureStartsAt && step < rec.BecomesAvailableAt {
				return rec, true
			}
		}
	}
	return world.FailureRecord{}, false
}
