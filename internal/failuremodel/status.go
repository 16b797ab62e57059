package failuremodel

import "github.com/marcoskonzen/trustedge/internal/world"

// ResolveStatus computes the Status a server should be in at the given step
// per its failure model's trace, appending the ongoing record to
// failure_history on its last unavailable step (the step just before
// becomes_available_at).
func ResolveStatus(m *world.FailureModel, step int) world.Status {
	rec, ok := OngoingFailure(m, step)
	if !ok {
		return world.StatusAvailable
	}

	if step+1 >= rec.BecomesAvailableAt {
		recordCompletion(m, rec)
	}
	if step >= rec.StartsBootingAt {
		return world.StatusBooting
	}
	return world.StatusFailing
}

func recordCompletion(m *world.FailureModel, rec world.FailureRecord) {
	for _, h := range m.FailureHistory {
		if h == rec {
			return
		}
	}
	m.FailureHistory = append(m.FailureHistory, rec)
}
