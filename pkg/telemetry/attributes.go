package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys used across spans emitted by the scheduler and its components.
const (
	// Tick / scheduler
	AttrTickStep  = "tick.step"
	AttrTickPhase = "tick.phase"

	// Placement / policy
	AttrAlgorithm      = "algorithm.name"
	AttrCandidateCount = "algorithm.candidate_count"
	AttrChosenServer   = "algorithm.chosen_server_id"
	AttrPlacementScore = "algorithm.score"

	// Migration
	AttrMigrationServiceID = "migration.service_id"
	AttrMigrationReason    = "migration.reason"
	AttrMigrationStatus    = "migration.status"

	// Validation
	AttrValidationLevel  = "validation.level"
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"

	// Reliability / SLA
	AttrSLAViolationsCount = "reliability.sla_violations"
	AttrLinkUtilization    = "network.link_utilization"
)

// TickAttributes returns the attributes describing a scheduler tick phase.
func TickAttributes(step int, phase string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTickStep, step),
		attribute.String(AttrTickPhase, phase),
	}
}

// PlacementAttributes returns the attributes describing a placement decision.
func PlacementAttributes(algorithm string, candidateCount int, chosenServerID int64, score float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAlgorithm, algorithm),
		attribute.Int(AttrCandidateCount, candidateCount),
		attribute.Int64(AttrChosenServer, chosenServerID),
		attribute.Float64(AttrPlacementScore, score),
	}
}

// MigrationAttributes returns the attributes describing a migration state change.
func MigrationAttributes(serviceID int64, reason, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrMigrationServiceID, serviceID),
		attribute.String(AttrMigrationReason, reason),
		attribute.String(AttrMigrationStatus, status),
	}
}

// ValidationAttributes returns the attributes describing a scenario validation pass.
func ValidationAttributes(level string, errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrValidationLevel, level),
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}
