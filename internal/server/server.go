// Package server implements the per-tick server step: advancing each
// server's failure/repair state and draining its layer-download waiting
// queue into active network flows, bounded by its concurrent-download limit.
package server

import (
	"github.com/marcoskonzen/trustedge/internal/failuremodel"
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Generators holds one failuremodel.Generator per failure model, keyed by
// model id, so each model's Sampler RNG state persists across ticks. The
// scheduler owns a single Generators for the lifetime of a run.
type Generators struct {
	byModel map[world.ID]*failuremodel.Generator
}

// NewGenerators builds a Generator for every failure model in w and seeds
// its first failure group.
func NewGenerators(runSeed int64, w *world.World) *Generators {
	g := &Generators{byModel: map[world.ID]*failuremodel.Generator{}}
	for _, fm := range w.FailureModels {
		gen := failuremodel.NewGenerator(runSeed, fm)
		g.byModel[fm.ID] = gen

		start := fm.InitialFailureTimeStep
		if start <= 0 {
			start = 1
		}
		if len(fm.FailureTrace) == 0 {
			timeToBoot := 0
			if srv := w.Servers[fm.ServerID]; srv != nil {
				timeToBoot = srv.TimeToBoot
			}
			gen.GenerateSet(0, start, timeToBoot)
		}
	}
	return g
}

// Step advances one server by one tick: it extends and resolves the
// server's failure trace, then drains its waiting queue into the download
// queue while concurrency capacity allows.
func Step(w *world.World, g *topology.Graph, gens *Generators, step int, srv *world.Server) {
	advanceFailure(w, gens, step, srv)
	drainWaitingQueue(w, g, srv)
}

func advanceFailure(w *world.World, gens *Generators, step int, srv *world.Server) {
	fm := w.FailureModels[srv.FailureModelID]
	if fm == nil {
		srv.AvailableHistory = append(srv.AvailableHistory, srv.Available)
		return
	}

	if needsMoreFailures(fm) {
		if gen := gens.byModel[fm.ID]; gen != nil {
			next, ok := failuremodel.NextPlannedStart(fm, step)
			if !ok {
				last := fm.FailureTrace[len(fm.FailureTrace)-1]
				next = last[len(last)-1].BecomesAvailableAt + 1
			}
			gen.GenerateSet(step, next, srv.TimeToBoot)
		}
	}

	srv.Status = failuremodel.ResolveStatus(fm, step)
	srv.Available = srv.Status == world.StatusAvailable
	srv.AvailableHistory = append(srv.AvailableHistory, srv.Available)
}

// needsMoreFailures reports whether the failure trace needs another group:
// either nothing has been planned yet, or the most recently completed
// failure was the last one planned. This refills the trace only once a
// group is actually consumed, rather than appending a fresh group on every
// tick the server happens to be healthy.
func needsMoreFailures(fm *world.FailureModel) bool {
	if len(fm.FailureTrace) == 0 {
		return true
	}
	if len(fm.FailureHistory) == 0 {
		return false
	}
	lastGroup := fm.FailureTrace[len(fm.FailureTrace)-1]
	lastPlanned := lastGroup[len(lastGroup)-1]
	lastOccurred := fm.FailureHistory[len(fm.FailureHistory)-1]
	return lastOccurred == lastPlanned
}

func drainWaitingQueue(w *world.World, g *topology.Graph, srv *world.Server) {
	for len(srv.WaitingQueue) > 0 && len(srv.DownloadQueue) < srv.MaxConcurrentLayerDownload {
		layerID := srv.WaitingQueue[0]

		wanted := w.Layers[layerID]
		if wanted == nil {
			srv.WaitingQueue = srv.WaitingQueue[1:]
			continue
		}

		source, path, ok := nearestRegistryWithLayer(w, g, srv, wanted.Digest)
		if !ok {
			// no registry currently holds this layer; stop for this tick and
			// retry once one becomes available.
			return
		}

		srv.WaitingQueue = srv.WaitingQueue[1:]

		flow := &world.Flow{
			ID:                  w.NewFlowID(),
			Kind:                world.FlowLayer,
			Source:              source.ID,
			Target:              srv.ID,
			Path:                path,
			DataToTransferBytes: wanted.SizeMB,
			Status:              world.FlowActive,
			LayerID:             layerID,
		}
		w.Flows[flow.ID] = flow
		g.Allocate(path, flow.ID)
		srv.DownloadQueue = append(srv.DownloadQueue, flow.ID)
	}
}

// nearestRegistryWithLayer finds the available registry hosting digest with
// the shortest switch path to target, per the spec's registry-selection rule.
func nearestRegistryWithLayer(w *world.World, g *topology.Graph, target *world.Server, digest string) (*world.Server, []world.ID, bool) {
	var best *world.Server
	var bestPath []world.ID

	for _, id := range w.ServerIDsSorted() {
		reg := w.Servers[id]
		if !reg.IsRegistry || !reg.Available {
			continue
		}
		if !hostsDigest(w, reg, digest) {
			continue
		}
		path, _, err := g.ShortestPath(reg.SwitchID, target.SwitchID)
		if err != nil {
			continue
		}
		if best == nil || len(path) < len(bestPath) {
			best, bestPath = reg, path
		}
	}
	return best, bestPath, best != nil
}

func hostsDigest(w *world.World, srv *world.Server, digest string) bool {
	for _, lid := range srv.Layers {
		if l := w.Layers[lid]; l != nil && l.Digest == digest {
			return true
		}
	}
	return false
}

// ApplyLayerFlowCompletion materializes the pulled layer on the flow's
// target server, frees its slot in the download queue, and charges the
// layer's size against the target's disk demand.
func ApplyLayerFlowCompletion(w *world.World, flow *world.Flow) {
	target := w.Servers[flow.Target]
	if target == nil {
		return
	}
	target.DownloadQueue = removeID(target.DownloadQueue, flow.ID)

	wanted := w.Layers[flow.LayerID]
	if wanted == nil {
		return
	}

	newLayer := &world.Layer{
		ID:          w.NewLayerID(),
		Digest:      wanted.Digest,
		SizeMB:      wanted.SizeMB,
		Instruction: wanted.Instruction,
		ServerID:    target.ID,
	}
	w.Layers[newLayer.ID] = newLayer
	target.Layers = append(target.Layers, newLayer.ID)
	target.Demand.DiskMB += newLayer.SizeMB
}

func removeID(ids []world.ID, id world.ID) []world.ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
