// Package policy implements the placement policies that decide, once per
// tick, which application gets provisioned or migrated onto which edge
// server: TrustEdge (reliability- and locality-aware), KubernetesInspired
// (least-allocated bin packing) and FirstFitBaseline (no weighting at all).
package policy

import (
	"math"
	"sort"

	"github.com/marcoskonzen/trustedge/internal/migration"
	"github.com/marcoskonzen/trustedge/internal/reliability"
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Algorithm names the placement strategy in effect, mirroring the
// `algorithm` run parameter.
type Algorithm string

const (
	TrustEdge          Algorithm = "trustedge_v3"
	KubernetesInspired Algorithm = "kubernetes_inspired"
	FirstFitBaseline   Algorithm = "first_fit_baseline"
)

// Options carries the tuning knobs the run invocation resolves for the
// active algorithm.
type Options struct {
	Algorithm                  Algorithm
	ReliabilityThreshold       float64 // percent, 0..100
	Lookahead                  int
	EnableProactiveSLAMigration bool
}

// Step runs one tick of the placement policy: it provisions every pending
// application it can, then — for TrustEdge only, and only when the feature
// flag is set — triggers proactive migrations off servers whose reliability
// has degraded below the configured threshold.
func Step(w *world.World, g *topology.Graph, step int, opts Options) {
	provision(w, g, step, opts)

	if opts.Algorithm == TrustEdge && opts.EnableProactiveSLAMigration {
		proactiveMigrate(w, g, step, opts)
	}
}

type appWork struct {
	app           *world.Application
	user          *world.User
	service       *world.Service
	delaySLA      float64
	delayScore    float64
	intensityScore float64
	demand         float64
}

// provision collects every application currently being accessed whose
// service needs a host (unbound or unavailable, and without an open
// migration already in flight) and greedily places it on the best available
// candidate, in the order the active algorithm prioritises them.
func provision(w *world.World, g *topology.Graph, step int, opts Options) {
	work := pendingWork(w, g, step)

	if opts.Algorithm == TrustEdge {
		sort.SliceStable(work, func(i, j int) bool {
			return priorityScore(work[i]) > priorityScore(work[j])
		})
	}

	for _, item := range work {
		placeOne(w, g, step, opts, item)
	}
}

// pendingWork gathers, for every user currently inside an access window,
// the application/service pairs that need a host.
func pendingWork(w *world.World, g *topology.Graph, step int) []appWork {
	var work []appWork
	for _, uid := range w.UserIDsSorted() {
		user := w.Users[uid]
		for appID, pattern := range user.AccessPatterns {
			if _, accessing := pattern.ActiveWindow(step); !accessing {
				continue
			}
			app := w.Applications[appID]
			if app == nil || len(app.Services) == 0 {
				continue
			}
			svc := w.Services[app.Services[0]]
			if svc == nil || svc.OpenMigration() != nil {
				continue
			}
			if svc.ServerID != 0 && svc.Available {
				continue
			}
			work = append(work, appWork{
				app:            app,
				user:           user,
				service:        svc,
				delaySLA:       user.DelaySLAs[appID],
				delayScore:     delayScore(w, g, user, appID),
				intensityScore: intensityScore(pattern),
				demand:         demandScore(svc),
			})
		}
	}
	return work
}

// priorityScore combines delay urgency, access intensity, and how light the
// service's demand is into the TrustEdge provisioning order: applications
// that are more delay-sensitive, more actively used, and cheaper to place
// go first. The three terms are added as they are: they are not min-max
// normalised across the pending applications, and the demand term is not
// bounded to [0,1].
func priorityScore(a appWork) float64 {
	return a.delayScore + a.intensityScore + (1 - a.demand)
}

// delayScore is 1/sqrt(n*sla), where n is the number of currently-available
// servers that would satisfy the application's delay SLA and sla is that
// SLA — the fewer (and tighter) the SLA-compliant hosts, the higher the
// score.
func delayScore(w *world.World, g *topology.Graph, user *world.User, appID world.ID) float64 {
	sla := user.DelaySLAs[appID]
	if sla <= 0 {
		return 0
	}
	count := 0
	for _, sid := range w.ServerIDsSorted() {
		srv := w.Servers[sid]
		if !srv.Available {
			continue
		}
		path, _, err := g.ShortestPath(user.BaseStationID, srv.SwitchID)
		if err != nil {
			continue
		}
		if g.PathDelay(path) <= sla {
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return 1 / math.Sqrt(float64(count)*sla)
}

// intensityScore favours access patterns that request more often relative
// to their idle gaps.
func intensityScore(pattern *world.AccessPattern) float64 {
	if len(pattern.Windows) == 0 {
		return 0
	}
	var activeTotal, cycleTotal float64
	for i, w := range pattern.Windows {
		duration := float64(w.End - w.Start + 1)
		activeTotal += duration
		cycle := duration
		if i+1 < len(pattern.Windows) {
			cycle = float64(pattern.Windows[i+1].Start - w.Start)
		}
		cycleTotal += cycle
	}
	if cycleTotal == 0 {
		return 0
	}
	return activeTotal / cycleTotal
}

// demandScore is the geometric mean of a service's CPU and memory demand,
// sqrt(cpu*mem), in the demand's own units; it is neither normalised nor
// clamped.
func demandScore(svc *world.Service) float64 {
	return math.Sqrt(svc.CPUDemand * svc.MemoryDemand)
}

// placeOne ranks candidates for item's service and opens a migration onto
// the first one with enough capacity. If none qualifies, the service is
// left unbound for this tick and retried on the next.
func placeOne(w *world.World, g *topology.Graph, step int, opts Options, item appWork) {
	candidates := buildCandidates(w, g, step, item)
	if len(candidates) == 0 {
		return
	}

	rankCandidates(candidates, opts.Algorithm)

	for _, c := range candidates {
		if c.server.ID == item.service.ServerID {
			continue
		}
		if !c.hasCapacity {
			continue
		}
		migration.Open(w, item.service, c.server, world.ReasonProvision, step)
		return
	}
}

// proactiveMigrate looks for services whose current host's projected
// reliability has slipped below the threshold and migrates them to the
// best available candidate, provided that candidate is a strict
// improvement in trust cost.
func proactiveMigrate(w *world.World, g *topology.Graph, step int, opts Options) {
	for _, sid := range w.ServiceIDsSorted() {
		svc := w.Services[sid]
		if svc.ServerID == 0 || !svc.Available || svc.OpenMigration() != nil {
			continue
		}
		origin := w.Servers[svc.ServerID]
		if origin == nil || origin.FailureModelID == 0 {
			continue
		}
		model := w.FailureModels[origin.FailureModelID]
		if model == nil {
			continue
		}
		stats := reliability.Compute(model, step, model.InitialFailureTimeStep)
		if stats.ConditionalReliability(opts.Lookahead) >= opts.ReliabilityThreshold {
			continue
		}

		app := w.Applications[svc.ApplicationID]
		if app == nil || len(app.Users) == 0 {
			continue
		}
		user := w.Users[app.Users[0]]
		if user == nil {
			continue
		}

		item := appWork{app: app, user: user, service: svc}
		candidates := buildCandidates(w, g, step, item)
		rankCandidates(candidates, TrustEdge)

		originTrustCost := stats.RiskScore
		for _, c := range candidates {
			if c.server.ID == origin.ID || !c.hasCapacity {
				continue
			}
			if c.trustCost >= originTrustCost {
				continue
			}
			migration.Open(w, svc, c.server, world.ReasonProactive, step)
			break
		}
	}
}
