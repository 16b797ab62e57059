package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container for a simulation run.
type Metrics struct {
	// Scheduler
	TicksTotal    prometheus.Counter
	TickDuration  *prometheus.HistogramVec
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec

	// Failure model
	FailuresTotal  *prometheus.CounterVec
	RepairsTotal   *prometheus.CounterVec
	ServersDown    prometheus.Gauge

	// Migration
	MigrationsStarted   *prometheus.CounterVec
	MigrationsFinished  *prometheus.CounterVec
	MigrationsInterrupted *prometheus.CounterVec
	MigrationDuration   *prometheus.HistogramVec

	// Placement / SLA
	SLAViolationsTotal *prometheus.CounterVec
	PlacementScore     *prometheus.GaugeVec
	ProactiveMigrationsTotal *prometheus.CounterVec

	// Network
	FlowsActive     prometheus.Gauge
	LinkUtilization *prometheus.GaugeVec

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics builds and registers every collector for a run under the given namespace/subsystem.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Total number of simulation ticks executed",
		}),

		TickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tick_duration_seconds",
				Help:      "Wall-clock duration of a single tick, by phase",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"phase"},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of completed simulation runs",
			},
			[]string{"algorithm", "status"},
		),

		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full simulation run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"algorithm"},
		),

		FailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "server_failures_total",
				Help:      "Total number of server failure transitions",
			},
			[]string{"failure_group"},
		),

		RepairsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "server_repairs_total",
				Help:      "Total number of server repair (booting->available) transitions",
			},
			[]string{"failure_group"},
		),

		ServersDown: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "servers_down",
			Help:      "Current number of servers not in the available state",
		}),

		MigrationsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "migrations_started_total",
				Help:      "Total number of migrations opened, by reason",
			},
			[]string{"reason"},
		),

		MigrationsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "migrations_finished_total",
				Help:      "Total number of migrations that reached the finished state",
			},
			[]string{"reason"},
		),

		MigrationsInterrupted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "migrations_interrupted_total",
				Help:      "Total number of migrations interrupted before completion",
			},
			[]string{"reason"},
		),

		MigrationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "migration_duration_ticks",
				Help:      "Number of ticks a migration spent open before finishing",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"reason"},
		),

		SLAViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sla_violations_total",
				Help:      "Total number of SLA violations recorded",
			},
			[]string{"application"},
		),

		PlacementScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "placement_candidate_score",
				Help:      "Last computed placement score for a candidate server",
			},
			[]string{"algorithm"},
		),

		ProactiveMigrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "proactive_migrations_total",
				Help:      "Total number of migrations triggered by conditional-reliability lookahead",
			},
			[]string{"algorithm"},
		),

		FlowsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flows_active",
			Help:      "Current number of in-flight network flows",
		}),

		LinkUtilization: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "link_utilization_ratio",
				Help:      "Fraction of link bandwidth currently in use",
			},
			[]string{"link"},
		),

		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics, lazily initializing them under the "trustedge" namespace.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("trustedge", "")
	}
	return defaultMetrics
}

// RecordTick records the duration of one phase of one tick.
func (m *Metrics) RecordTick(phase string, duration time.Duration) {
	m.TicksTotal.Inc()
	m.TickDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordRun records the outcome of a full simulation run.
func (m *Metrics) RecordRun(algorithm string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(algorithm, status).Inc()
	m.RunDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordFailure records a server transitioning into the failing state.
func (m *Metrics) RecordFailure(failureGroup string) {
	m.FailuresTotal.WithLabelValues(failureGroup).Inc()
}

// RecordRepair records a server transitioning back to available.
func (m *Metrics) RecordRepair(failureGroup string) {
	m.RepairsTotal.WithLabelValues(failureGroup).Inc()
}

// RecordMigrationStart records a migration entering the waiting state.
func (m *Metrics) RecordMigrationStart(reason string) {
	m.MigrationsStarted.WithLabelValues(reason).Inc()
}

// RecordMigrationFinish records a migration reaching the finished state.
func (m *Metrics) RecordMigrationFinish(reason string, ticksOpen int) {
	m.MigrationsFinished.WithLabelValues(reason).Inc()
	m.MigrationDuration.WithLabelValues(reason).Observe(float64(ticksOpen))
}

// RecordMigrationInterrupted records a migration that was cancelled before completion.
func (m *Metrics) RecordMigrationInterrupted(reason string) {
	m.MigrationsInterrupted.WithLabelValues(reason).Inc()
}

// RecordSLAViolation records an SLA violation attributed to an application.
func (m *Metrics) RecordSLAViolation(application string) {
	m.SLAViolationsTotal.WithLabelValues(application).Inc()
}

// RecordProactiveMigration records a lookahead-triggered migration.
func (m *Metrics) RecordProactiveMigration(algorithm string) {
	m.ProactiveMigrationsTotal.WithLabelValues(algorithm).Inc()
}

// SetServiceInfo sets the build info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts a standalone metrics HTTP server at addr (e.g. ":9090").
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
