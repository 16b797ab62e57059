package policy

import (
	"math"
	"sort"

	"github.com/marcoskonzen/trustedge/internal/reliability"
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// candidate is one edge server's scored suitability to host an item's
// service, mirroring the per-host metadata dict the reliability math and
// ranking functions consume.
type candidate struct {
	server *world.Server

	slaViolations    int
	trustCost        float64
	uncachedLayers   int
	overallDelay     float64
	powerConsumption float64
	freeCapacity     float64

	hasCapacity bool
}

// buildCandidates scores every currently available server as a host for
// item's service.
func buildCandidates(w *world.World, g *topology.Graph, step int, item appWork) []*candidate {
	image := w.Images[item.service.ImageID]

	var out []*candidate
	for _, sid := range w.ServerIDsSorted() {
		srv := w.Servers[sid]
		if !srv.Available {
			continue
		}

		additionalDelay := 0.0
		if path, _, err := g.ShortestPath(item.user.BaseStationID, srv.SwitchID); err == nil {
			additionalDelay = g.PathDelay(path)
		}
		overallDelay := item.user.Delays[item.app.ID] + additionalDelay

		slaViolations := 0
		if item.delaySLA > 0 && overallDelay > item.delaySLA {
			slaViolations = 1
		}

		trustCost := trustCostOf(w, srv, step)
		uncached := uncachedLayerCount(w, srv, image)

		cpuFraction := 0.0
		if srv.Capacity.CPUCores > 0 {
			cpuFraction = srv.Demand.CPUCores / srv.Capacity.CPUCores
		}

		c := &candidate{
			server:           srv,
			slaViolations:    slaViolations,
			trustCost:        trustCost,
			uncachedLayers:   uncached,
			overallDelay:     overallDelay,
			powerConsumption: srv.Power.Consumption(cpuFraction),
			freeCapacity:     freeCapacityScore(srv),
			hasCapacity:      hasCapacityToHost(w, srv, item.service, image),
		}
		out = append(out, c)
	}
	return out
}

// trustCostOf is a candidate's risk_score: 0 for a server with no failure
// model at all (nothing to be risky about) or one that has never failed.
func trustCostOf(w *world.World, srv *world.Server, step int) float64 {
	if srv.FailureModelID == 0 {
		return 0
	}
	model := w.FailureModels[srv.FailureModelID]
	if model == nil {
		return 0
	}
	return reliability.Compute(model, step, model.InitialFailureTimeStep).RiskScore
}

func uncachedLayerCount(w *world.World, srv *world.Server, image *world.Image) int {
	if image == nil {
		return 0
	}
	n := 0
	for _, digest := range image.LayerDigests {
		found := false
		for _, lid := range srv.Layers {
			if l := w.Layers[lid]; l != nil && l.Digest == digest {
				found = true
				break
			}
		}
		if !found {
			n++
		}
	}
	return n
}

// uncachedLayerSize sums the size, in MB, of every layer the image needs
// that srv doesn't already hold — the extra disk a fresh placement would
// need to reserve.
func uncachedLayerSize(w *world.World, srv *world.Server, image *world.Image) float64 {
	if image == nil {
		return 0
	}
	var total float64
	for _, digest := range image.LayerDigests {
		resident := false
		for _, lid := range srv.Layers {
			if l := w.Layers[lid]; l != nil && l.Digest == digest {
				resident = true
				break
			}
		}
		if resident {
			continue
		}
		for _, l := range w.Layers {
			if l.ServerID == 0 && l.Digest == digest {
				total += l.SizeMB
				break
			}
		}
	}
	return total
}

// hasCapacityToHost reports whether srv has enough free CPU, memory and
// disk to admit svc's demand plus whatever layers of image it doesn't
// already cache.
func hasCapacityToHost(w *world.World, srv *world.Server, svc *world.Service, image *world.Image) bool {
	freeCPU := srv.Capacity.CPUCores - srv.Demand.CPUCores
	freeMemory := srv.Capacity.MemoryGB - srv.Demand.MemoryGB
	freeDisk := srv.Capacity.DiskMB - srv.Demand.DiskMB

	neededDisk := uncachedLayerSize(w, srv, image)

	return svc.CPUDemand <= freeCPU && svc.MemoryDemand <= freeMemory && neededDisk <= freeDisk
}

// freeCapacityScore is the geometric mean (cube root of the product) of a
// server's free CPU, memory and disk in their raw units, used by the
// KubernetesInspired "least allocated" ranking: higher is better (more
// headroom). It is zero when any of the three is exhausted.
func freeCapacityScore(srv *world.Server) float64 {
	freeCPU := srv.Capacity.CPUCores - srv.Demand.CPUCores
	freeMemory := srv.Capacity.MemoryGB - srv.Demand.MemoryGB
	freeDisk := srv.Capacity.DiskMB - srv.Demand.DiskMB
	if freeCPU <= 0 || freeMemory <= 0 || freeDisk <= 0 {
		return 0
	}
	return cubeRoot(freeCPU * freeMemory * freeDisk)
}

func cubeRoot(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Pow(v, 1.0/3.0)
}

// rankCandidates orders candidates in place, best first, per the active
// algorithm's lexicographic key.
func rankCandidates(candidates []*candidate, algo Algorithm) {
	switch algo {
	case TrustEdge:
		minMax := buildMinMax(candidates)
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.slaViolations != b.slaViolations {
				return a.slaViolations < b.slaViolations
			}
			return trustEdgeSum(a, minMax) < trustEdgeSum(b, minMax)
		})
	case KubernetesInspired:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.slaViolations != b.slaViolations {
				return a.slaViolations < b.slaViolations
			}
			return a.freeCapacity > b.freeCapacity
		})
	default: // FirstFitBaseline
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].server.ID < candidates[j].server.ID
		})
	}
}

// minMax holds the observed range of each normalised attribute across one
// candidate set, the Go analogue of find_minimum_and_maximum.
type minMax struct {
	trustMin, trustMax         float64
	uncachedMin, uncachedMax   float64
	delayMin, delayMax         float64
}

func buildMinMax(candidates []*candidate) minMax {
	if len(candidates) == 0 {
		return minMax{}
	}
	mm := minMax{
		trustMin: candidates[0].trustCost, trustMax: candidates[0].trustCost,
		uncachedMin: float64(candidates[0].uncachedLayers), uncachedMax: float64(candidates[0].uncachedLayers),
		delayMin: candidates[0].overallDelay, delayMax: candidates[0].overallDelay,
	}
	for _, c := range candidates[1:] {
		mm.trustMin = minOf(mm.trustMin, c.trustCost)
		mm.trustMax = maxOf(mm.trustMax, c.trustCost)
		mm.uncachedMin = minOf(mm.uncachedMin, float64(c.uncachedLayers))
		mm.uncachedMax = maxOf(mm.uncachedMax, float64(c.uncachedLayers))
		mm.delayMin = minOf(mm.delayMin, c.overallDelay)
		mm.delayMax = maxOf(mm.delayMax, c.overallDelay)
	}
	return mm
}

func trustEdgeSum(c *candidate, mm minMax) float64 {
	return normalize(c.trustCost, mm.trustMin, mm.trustMax) +
		normalize(float64(c.uncachedLayers), mm.uncachedMin, mm.uncachedMax) +
		normalize(c.overallDelay, mm.delayMin, mm.delayMax)
}

// normalize is min-max normalisation; a degenerate (all-equal) range
// normalises to 1, matching the original's convention of treating a tie as
// "fully at the max" rather than dividing by zero.
func normalize(x, min, max float64) float64 {
	if min == max {
		return 1
	}
	return (x - min) / (max - min)
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
