package report

import (
	"fmt"
	"math"
	"time"

	"github.com/marcoskonzen/trustedge/internal/policy"
	"github.com/marcoskonzen/trustedge/internal/reliability"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Collector implements scheduler.Collector, folding every tick's world
// state into the running totals Finalize turns into a RunMetrics record.
type Collector struct {
	delaySum   float64
	delayCount int

	delaySLAViolations    int
	downtimeSLAViolations int
	perceivedDowntime     float64

	delayViolationsPerSLA     map[string]int
	delayViolationsPerPattern map[string]int
	downtimeReasons           map[string]int

	totalMigrations   int
	predictedMigrations int
}

func NewCollector() *Collector {
	return &Collector{
		delayViolationsPerSLA:     map[string]int{},
		delayViolationsPerPattern: map[string]int{},
		downtimeReasons:           map[string]int{},
	}
}

// CollectTick is the scheduler.Collector hook: it never mutates simulation
// state, only its own running totals. The per-step history slices and the
// downtime tally are appended by the application and server steps.
func (c *Collector) CollectTick(w *world.World, step int) {
	for uid, u := range w.Users {
		for appID, pattern := range u.AccessPatterns {
			if _, active := pattern.ActiveWindow(step); !active {
				continue
			}
			delay := u.Delays[appID]
			c.delaySum += delay
			c.delayCount++

			sla := u.DelaySLAs[appID]
			if sla > 0 && delay > sla {
				c.delaySLAViolations++
				c.delayViolationsPerSLA[fmt.Sprintf("%g", sla)]++
				c.delayViolationsPerPattern[fmt.Sprintf("user:%d/app:%d", uid, appID)]++
			}
		}

		for appID, allowed := range u.MaxDowntimeAllowed {
			if allowed <= 0 {
				continue
			}
			downtime := 0
			if app := applicationByID(w, appID); app != nil {
				downtime = app.DowntimeHistory
			}
			if downtime > allowed {
				c.downtimeSLAViolations++
			}
		}
	}

	for _, app := range w.Applications {
		available := len(app.Services) > 0
		for _, sid := range app.Services {
			if svc := w.Services[sid]; svc == nil || !svc.Available {
				available = false
			}
		}
		if !available {
			c.perceivedDowntime++
		}
	}

	for _, srv := range w.Servers {
		if !srv.Available {
			reason := "server_failure"
			if srv.Status == world.StatusBooting {
				reason = "booting"
			}
			c.downtimeReasons[reason]++
		}
	}

	for _, svc := range w.Services {
		mig := svc.OpenMigration()
		if mig == nil || mig.Start != step {
			continue
		}
		c.totalMigrations++
		if mig.Reason == world.ReasonProactive {
			c.predictedMigrations++
		}
	}
}

func applicationByID(w *world.World, id world.ID) *world.Application {
	return w.Applications[id]
}

// Finalize renders the accumulated totals, plus a read-through of the
// world's final failure models, into a RunMetrics record.
func (c *Collector) Finalize(w *world.World, opts policy.Options, seed int64, steps int, elapsed time.Duration) *RunMetrics {
	rm := &RunMetrics{
		Execution: ExecutionMetrics{TotalTimeMinutes: elapsed.Minutes()},
		Parameters: RunParameters{
			Seed:                        seed,
			Algorithm:                   string(opts.Algorithm),
			TimeSteps:                   steps,
			EnableProactiveSLAMigration: opts.EnableProactiveSLAMigration,
			ReliabilityThreshold:        opts.ReliabilityThreshold,
			Lookahead:                   opts.Lookahead,
		},
		SLA: SLAMetrics{
			TotalDelaySLAViolations:         c.delaySLAViolations,
			TotalPerceivedDowntime:          c.perceivedDowntime,
			TotalDowntimeSLAViolations:      c.downtimeSLAViolations,
			DelayViolationsPerDelaySLA:      c.delayViolationsPerSLA,
			DelayViolationsPerAccessPattern: c.delayViolationsPerPattern,
			DowntimeReasons:                 c.downtimeReasons,
		},
		ProvisioningAndMigration: ProvisioningMetrics{TotalMigrations: c.totalMigrations},
		ServerReliability:        map[string]ServerReliabilitySummary{},
	}
	if c.delayCount > 0 {
		rm.SLA.AvgDelay = c.delaySum / float64(c.delayCount)
	}

	rm.PredictionQuality = c.predictionQuality(w, opts.Lookahead)

	for sid, srv := range w.Servers {
		summary := ServerReliabilitySummary{}
		if fm := w.FailureModels[srv.FailureModelID]; fm != nil {
			stats := reliability.Compute(fm, steps, fm.InitialFailureTimeStep)
			// a server that never failed has an infinite MTBF; -1 is the
			// JSON-safe sentinel for "never failed" (encoding/json rejects
			// literal +Inf).
			summary.MTBF = stats.MTBF
			if math.IsInf(summary.MTBF, 1) {
				summary.MTBF = -1
			}
			summary.MTTR = stats.MTTR
			summary.TotalFailures = len(fm.FailureHistory)
		}
		for _, avail := range srv.AvailableHistory {
			if avail {
				summary.UptimeSteps++
			} else {
				summary.DowntimeSteps++
			}
		}
		rm.ServerReliability[fmt.Sprintf("%d", sid)] = summary
	}

	return rm
}

// predictionQuality scores the TrustEdge proactive-migration feature as a
// binary predictor of failures: a migration counts as a true positive when
// its origin server actually fails within lookahead steps of the migration
// starting; a failure counts as anticipated when some proactive migration
// preceded it by no more than lookahead steps.
func (c *Collector) predictionQuality(w *world.World, lookahead int) PredictionQuality {
	if lookahead <= 0 {
		lookahead = 1
	}

	truePositives := 0
	for _, svc := range w.Services {
		for _, mig := range svc.Migrations {
			if mig.Reason != world.ReasonProactive {
				continue
			}
			origin := w.Servers[mig.Origin]
			if origin == nil {
				continue
			}
			fm := w.FailureModels[origin.FailureModelID]
			if fm == nil {
				continue
			}
			for _, rec := range fm.FailureHistory {
				if rec.FailureStartsAt >= mig.Start && rec.FailureStartsAt <= mig.Start+lookahead {
					truePositives++
					break
				}
			}
		}
	}

	actualFailures, anticipated := 0, 0
	for _, fm := range w.FailureModels {
		for _, rec := range fm.FailureHistory {
			actualFailures++
			if anyProactiveMigrationAnticipated(w, fm.ServerID, rec, lookahead) {
				anticipated++
			}
		}
	}

	q := PredictionQuality{}
	if c.predictedMigrations > 0 {
		q.Precision = float64(truePositives) / float64(c.predictedMigrations)
	}
	if actualFailures > 0 {
		q.Recall = float64(anticipated) / float64(actualFailures)
	}
	return q
}

// anyProactiveMigrationAnticipated reports whether some proactive migration
// moved a service off origin in the lookahead steps immediately before rec
// started, i.e. whether the policy saw this failure coming in time to act.
func anyProactiveMigrationAnticipated(w *world.World, origin world.ID, rec world.FailureRecord, lookahead int) bool {
	for _, svc := range w.Services {
		for _, mig := range svc.Migrations {
			if mig.Reason != world.ReasonProactive || mig.Origin != origin {
				continue
			}
			if mig.Start >= rec.FailureStartsAt-lookahead && mig.Start < rec.FailureStartsAt {
				return true
			}
		}
	}
	return false
}
