// Package report accumulates a run's quality-of-service metrics tick by
// tick and renders the resulting record as JSON or as a human-readable
// XLSX summary.
package report

// RunMetrics is the per-run metrics record a simulation emits, matching
// the JSON shape a run's metrics.json file carries.
type RunMetrics struct {
	RunID                    string                              `json:"run_id"`
	Execution                ExecutionMetrics                    `json:"execution"`
	Parameters               RunParameters                       `json:"parameters"`
	SLA                      SLAMetrics                          `json:"sla"`
	ProvisioningAndMigration ProvisioningMetrics                 `json:"provisioning_and_migration"`
	PredictionQuality        PredictionQuality                   `json:"prediction_quality"`
	ServerReliability        map[string]ServerReliabilitySummary `json:"server_reliability"`
}

type ExecutionMetrics struct {
	TotalTimeMinutes float64 `json:"total_time_minutes"`
}

type RunParameters struct {
	Seed                        int64   `json:"seed"`
	Algorithm                   string  `json:"algorithm"`
	TimeSteps                   int     `json:"time_steps"`
	EnableFailurePrediction     bool    `json:"enable_failure_prediction"`
	EnableP2PLayerFetch         bool    `json:"enable_p2p_layer_fetch"`
	EnableLiveMigration         bool    `json:"enable_live_migration"`
	EnableProactiveSLAMigration bool    `json:"enable_proactive_sla_migration"`
	WindowSize                  int     `json:"window_size"`
	ReliabilityThreshold        float64 `json:"reliability_threshold"`
	Lookahead                   int     `json:"lookahead"`
	DelayThreshold              float64 `json:"delay_threshold"`
}

type SLAMetrics struct {
	TotalDelaySLAViolations        int            `json:"total_delay_sla_violations"`
	TotalPerceivedDowntime         float64        `json:"total_perceived_downtime"`
	TotalDowntimeSLAViolations     int            `json:"total_downtime_sla_violations"`
	AvgDelay                       float64        `json:"avg_delay"`
	DelayViolationsPerDelaySLA     map[string]int `json:"delay_violations_per_delay_sla"`
	DelayViolationsPerAccessPattern map[string]int `json:"delay_violations_per_access_pattern"`
	DowntimeReasons                map[string]int `json:"downtime_reasons"`
}

type ProvisioningMetrics struct {
	TotalMigrations int `json:"total_migrations"`
}

type PredictionQuality struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// ServerReliabilitySummary is one server's end-of-run reliability figures,
// the same quantities internal/reliability computes at every placement
// decision, reported once per server for the final record.
type ServerReliabilitySummary struct {
	MTBF          float64 `json:"mtbf"`
	MTTR          float64 `json:"mttr"`
	TotalFailures int     `json:"total_failures"`
	UptimeSteps   int     `json:"uptime_steps"`
	DowntimeSteps int     `json:"downtime_steps"`
}
