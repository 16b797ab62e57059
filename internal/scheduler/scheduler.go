// Package scheduler runs the discrete-event tick loop: once per step it
// fans out, in a fixed order, across the placement policy, the server
// step, the network-flow engine, the migration state machine, the user
// step, the application step and metrics collection. Everything inside a
// tick runs on the calling goroutine — there is no wall-clock concurrency
// across steps, only a strict read-before-write contract between phases.
package scheduler

import (
	"context"
	"time"

	"github.com/marcoskonzen/trustedge/internal/application"
	"github.com/marcoskonzen/trustedge/internal/flowengine"
	"github.com/marcoskonzen/trustedge/internal/migration"
	"github.com/marcoskonzen/trustedge/internal/policy"
	"github.com/marcoskonzen/trustedge/internal/server"
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/user"
	"github.com/marcoskonzen/trustedge/internal/world"
	"github.com/marcoskonzen/trustedge/pkg/apperror"
	"github.com/marcoskonzen/trustedge/pkg/cache"
	"github.com/marcoskonzen/trustedge/pkg/logger"
	"github.com/marcoskonzen/trustedge/pkg/metrics"
	"github.com/marcoskonzen/trustedge/pkg/telemetry"
)

// topologyCacheTTL is long relative to a run's wall-clock time: link delays
// never change mid-run, so a memoised path never goes stale before the run
// ends.
const topologyCacheTTL = time.Hour

// Scheduler owns the World for the duration of a run and drives it forward
// one tick at a time.
type Scheduler struct {
	w    *world.World
	g    *topology.Graph
	opts policy.Options

	gens *server.Generators
	flow *flowengine.Engine

	metrics *metrics.Metrics

	collector Collector
}

// Collector receives a callback at the end of every tick so the caller can
// accumulate whatever metrics.json eventually reports; left nil, no
// per-tick snapshot is collected beyond what Prometheus already recorded.
type Collector interface {
	CollectTick(w *world.World, step int)
}

// New builds a Scheduler over w, seeding one failure-trace generator per
// failure model with runSeed. When c is non-nil, shortest-path lookups are
// memoised through it; pass nil to skip memoisation (as every existing test
// does).
func New(w *world.World, runSeed int64, opts policy.Options, m *metrics.Metrics, c cache.Cache, collector Collector) *Scheduler {
	var g *topology.Graph
	if c != nil {
		g = topology.NewWithCache(w, c, topologyCacheTTL)
	} else {
		g = topology.New(w)
	}
	return &Scheduler{
		w:         w,
		g:         g,
		opts:      opts,
		gens:      server.NewGenerators(runSeed, w),
		flow:      flowengine.New(w, g),
		metrics:   m,
		collector: collector,
	}
}

// Run advances the simulation for steps ticks, in order, starting at step
// 1 (step 0 is the scenario's initial, pre-simulation state).
func (s *Scheduler) Run(ctx context.Context, steps int) error {
	for step := 1; step <= steps; step++ {
		if err := s.tick(ctx, step); err != nil {
			return apperror.Wrap(err, apperror.CodeAlgorithmError, "tick failed")
		}
	}
	return nil
}

// tick runs every phase of one simulation step, in the order §4.1
// mandates: placement policy, server step, flow engine, migration step,
// user step, application step, metrics collection.
func (s *Scheduler) tick(ctx context.Context, step int) error {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.TicksTotal.Inc()
			s.metrics.TickDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
		}
	}()

	if err := s.phase(ctx, step, "placement_policy", func(context.Context) error {
		policy.Step(s.w, s.g, step, s.opts)
		return nil
	}); err != nil {
		return err
	}

	if err := s.phase(ctx, step, "server_step", func(context.Context) error {
		for _, sid := range s.w.ServerIDsSorted() {
			server.Step(s.w, s.g, s.gens, step, s.w.Servers[sid])
		}
		return nil
	}); err != nil {
		return err
	}

	var completions []flowengine.Completion
	if err := s.phase(ctx, step, "flow_engine", func(context.Context) error {
		completions = s.flow.Step()
		return nil
	}); err != nil {
		return err
	}

	if err := s.phase(ctx, step, "migration_step", func(context.Context) error {
		s.applyFlowCompletions(step, completions)
		for _, sid := range s.w.ServiceIDsSorted() {
			migration.Step(s.w, s.g, step, s.w.Services[sid])
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.phase(ctx, step, "user_step", func(context.Context) error {
		for _, uid := range s.w.UserIDsSorted() {
			user.Step(s.w, s.g, step, s.w.Users[uid])
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.phase(ctx, step, "application_step", func(context.Context) error {
		for _, aid := range s.w.ApplicationIDsSorted() {
			application.Step(s.w, s.w.Applications[aid])
		}
		return nil
	}); err != nil {
		return err
	}

	return s.phase(ctx, step, "metrics_collection", func(context.Context) error {
		if s.collector != nil {
			s.collector.CollectTick(s.w, step)
		}
		return nil
	})
}

// applyFlowCompletions dispatches each completed flow to the component
// that owns its side effect: a finished layer pull is installed on its
// target server by the server package, a service-state transfer finishes
// the migration that opened it.
func (s *Scheduler) applyFlowCompletions(step int, completions []flowengine.Completion) {
	for _, c := range completions {
		flow := s.w.Flows[c.FlowID]
		if flow == nil {
			continue
		}
		s.g.Release(flow.Path, flow.ID)

		switch c.Kind {
		case world.FlowLayer:
			server.ApplyLayerFlowCompletion(s.w, flow)
		case world.FlowServiceState:
			if svc := s.w.Services[flow.ServiceID]; svc != nil {
				migration.OnStateFlowComplete(s.w, step, svc)
			}
		}
	}
}

// phase wraps one scheduler phase with tracing, a per-phase tick-duration
// histogram and debug logging, the instrumentation seam every phase of
// every tick runs through.
func (s *Scheduler) phase(ctx context.Context, step int, name string, fn telemetry.PhaseFunc) error {
	start := time.Now()
	err := telemetry.TracePhase(ctx, step, name, fn)
	if s.metrics != nil {
		s.metrics.TickDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if logger.Log != nil {
		logger.Log.Debug("tick phase complete", "step", step, "phase", name, "duration_ms", time.Since(start).Milliseconds())
	}
	return err
}
