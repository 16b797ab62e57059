// Command trustedge runs one discrete-event simulation of a failure-aware
// edge-computing orchestrator over a scenario dataset and writes a metrics
// report for the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marcoskonzen/trustedge/internal/policy"
	"github.com/marcoskonzen/trustedge/internal/report"
	"github.com/marcoskonzen/trustedge/internal/resultstore"
	"github.com/marcoskonzen/trustedge/internal/resultstore/migrations"
	"github.com/marcoskonzen/trustedge/internal/scenario"
	"github.com/marcoskonzen/trustedge/internal/scheduler"
	"github.com/marcoskonzen/trustedge/pkg/apperror"
	"github.com/marcoskonzen/trustedge/pkg/cache"
	"github.com/marcoskonzen/trustedge/pkg/config"
	"github.com/marcoskonzen/trustedge/pkg/database"
	"github.com/marcoskonzen/trustedge/pkg/logger"
	"github.com/marcoskonzen/trustedge/pkg/metrics"
	"github.com/marcoskonzen/trustedge/pkg/telemetry"
)

// flags mirrors the run invocation's positional parameters and optional
// feature flags/tuning knobs; zero values mean "use the loaded config".
type flags struct {
	seed      int64
	algorithm string
	timeSteps int
	dataset   string

	enableFailurePrediction     bool
	enableP2PLayerFetch         bool
	enableLiveMigration         bool
	enableProactiveSLAMigration bool

	windowSize           int
	reliabilityThreshold float64
	lookahead            int
	delayThreshold       float64
}

func parseFlags() flags {
	var f flags
	flag.Int64Var(&f.seed, "seed", 0, "PRNG seed for this run")
	flag.StringVar(&f.algorithm, "algorithm", "", "trustedge_v3, kubernetes_inspired, or first_fit_baseline")
	flag.IntVar(&f.timeSteps, "time-steps", 0, "number of ticks to simulate")
	flag.StringVar(&f.dataset, "dataset", "", "path to the scenario dataset JSON file")

	flag.BoolVar(&f.enableFailurePrediction, "enable-failure-prediction", false, "")
	flag.BoolVar(&f.enableP2PLayerFetch, "enable-p2p-layer-fetch", false, "")
	flag.BoolVar(&f.enableLiveMigration, "enable-live-migration", false, "")
	flag.BoolVar(&f.enableProactiveSLAMigration, "enable-proactive-sla-migration", false, "")

	flag.IntVar(&f.windowSize, "window-size", 0, "")
	flag.Float64Var(&f.reliabilityThreshold, "reliability-threshold", 0, "")
	flag.IntVar(&f.lookahead, "lookahead", 0, "")
	flag.Float64Var(&f.delayThreshold, "delay-threshold", 0, "")

	flag.Parse()
	return f
}

// applyOverrides layers the run invocation's explicit flags over the
// loaded config, per §6: positional/flag parameters take final precedence.
func applyOverrides(cfg *config.Config, f flags) {
	if f.seed != 0 {
		cfg.Simulation.Seed = f.seed
	}
	if f.algorithm != "" {
		cfg.Simulation.Algorithm = f.algorithm
	}
	if f.timeSteps != 0 {
		cfg.Simulation.TimeSteps = f.timeSteps
	}
	if f.enableFailurePrediction {
		cfg.Simulation.EnableFailurePrediction = true
	}
	if f.enableP2PLayerFetch {
		cfg.Simulation.EnableP2PLayerFetch = true
	}
	if f.enableLiveMigration {
		cfg.Simulation.EnableLiveMigration = true
	}
	if f.enableProactiveSLAMigration {
		cfg.Simulation.EnableProactiveSLAMigration = true
	}
	if f.windowSize != 0 {
		cfg.Simulation.WindowSize = f.windowSize
	}
	if f.reliabilityThreshold != 0 {
		cfg.Simulation.ReliabilityThreshold = f.reliabilityThreshold
	}
	if f.lookahead != 0 {
		cfg.Simulation.Lookahead = f.lookahead
	}
	if f.delayThreshold != 0 {
		cfg.Simulation.DelayThreshold = f.delayThreshold
	}
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, f)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
		}
	}

	promMetrics := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	if f.dataset == "" {
		logger.Error("missing required -dataset flag")
		os.Exit(1)
	}
	doc, err := scenario.Load(f.dataset)
	if err != nil {
		logger.Error("failed to load scenario", "error", err, "path", f.dataset)
		os.Exit(1)
	}
	w, err := scenario.BuildWorld(doc)
	if err != nil {
		logger.Error("failed to build world from scenario", "error", err)
		os.Exit(1)
	}

	opts := policy.Options{
		Algorithm:                   policy.Algorithm(cfg.Simulation.Algorithm),
		ReliabilityThreshold:        cfg.Simulation.ReliabilityThreshold,
		Lookahead:                   cfg.Simulation.Lookahead,
		EnableProactiveSLAMigration: cfg.Simulation.EnableProactiveSLAMigration,
	}

	topoCache, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		logger.Warn("topology cache unavailable, shortest paths will not be memoised", "error", err)
		topoCache = nil
	}

	collector := report.NewCollector()
	sched := scheduler.New(w, cfg.Simulation.Seed, opts, promMetrics, topoCache, collector)

	start := time.Now()
	runErr := sched.Run(ctx, cfg.Simulation.TimeSteps)
	elapsed := time.Since(start)
	if runErr != nil {
		logger.Error("simulation run failed", "error", runErr)
		os.Exit(1)
	}

	rm := collector.Finalize(w, opts, cfg.Simulation.Seed, cfg.Simulation.TimeSteps, elapsed)
	rm.RunID = uuid.NewString()
	logger.Info("simulation run complete", "run_id", rm.RunID, "elapsed", elapsed)

	if err := os.MkdirAll(cfg.Simulation.ResultsDir, 0o755); err != nil {
		logger.Error("failed to create results directory", "error", err)
		os.Exit(1)
	}
	resultsPath := filepath.Join(
		cfg.Simulation.ResultsDir,
		fmt.Sprintf("metrics_run_%s%d.json", cfg.Simulation.FilePrefix, cfg.Simulation.Seed),
	)
	if err := report.WriteJSON(resultsPath, rm); err != nil {
		logger.Error("failed to write metrics report", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote run metrics", "path", resultsPath)

	if cfg.Report.Enabled {
		xlsxPath := resultsPath[:len(resultsPath)-len(".json")] + ".xlsx"
		if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
			logger.Warn("failed to create report output directory", "error", err)
		} else if err := report.WriteXLSX(xlsxPath, rm); err != nil {
			logger.Warn("failed to write xlsx report", "error", err)
		}
	}

	if cfg.Database.Enabled {
		if err := persistRun(ctx, cfg, rm); err != nil {
			logger.Warn("failed to persist run record", "error", err)
		}
	}
}

// persistRun connects to Postgres, runs migrations if configured, and saves
// the run's metrics record. A failure here never fails the run itself: the
// metrics file on disk is already the run's source of truth.
func persistRun(ctx context.Context, cfg *config.Config, rm *report.RunMetrics) error {
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistenceFailed, "connecting to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.Files, "."); err != nil {
			return apperror.Wrap(err, apperror.CodePersistenceFailed, "running migrations")
		}
	}

	store := resultstore.NewPostgresStore(db)
	_, err = store.Save(ctx, rm)
	return err
}
