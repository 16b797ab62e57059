// Package flowengine advances in-flight network flows by one tick, sharing
// each link's bandwidth equally among its active flows (min-max fairness)
// and applying the transmission-delay factor before deducting bytes
// transferred.
package flowengine

import (
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Completion describes one flow that finished this tick, so the caller
// (server/service step) can run the kind-specific side effect.
type Completion struct {
	FlowID world.ID
	Kind   world.FlowKind
}

// Engine advances every active flow in a World by one tick.
type Engine struct {
	w *world.World
	g *topology.Graph
}

func New(w *world.World, g *topology.Graph) *Engine {
	return &Engine{w: w, g: g}
}

// linkShare returns, for every link, the bandwidth allotted to each of its
// active flows: nominal bandwidth divided equally among them.
func (e *Engine) linkShare() map[world.LinkKey]float64 {
	shares := make(map[world.LinkKey]float64, len(e.w.Links))
	for key, link := range e.w.Links {
		if len(link.ActiveFlows) == 0 {
			shares[key] = link.BandwidthMbps
			continue
		}
		shares[key] = link.BandwidthMbps / float64(len(link.ActiveFlows))
	}
	return shares
}

// Step advances every active flow by one tick and returns the flows that
// completed. Flows are processed in ascending id order.
func (e *Engine) Step() []Completion {
	shares := e.linkShare()

	var completions []Completion
	for _, id := range e.w.FlowIDsSorted() {
		flow := e.w.Flows[id]
		if flow.Status != world.FlowActive {
			continue
		}

		throughput, transmissionFactor := e.flowThroughput(flow, shares)
		effective := throughput * transmissionFactor
		flow.BandwidthShareMbps = effective

		flow.DataToTransferBytes -= effective
		if flow.DataToTransferBytes <= 0 {
			flow.DataToTransferBytes = 0
			flow.Status = world.FlowCompleted
			completions = append(completions, Completion{FlowID: flow.ID, Kind: flow.Kind})
		}
	}
	return completions
}

// flowThroughput returns the flow's bottleneck share across its path (the
// minimum per-link share) and the smallest transmission-delay factor on
// the path (a delay factor closer to 0 throttles throughput more).
func (e *Engine) flowThroughput(flow *world.Flow, shares map[world.LinkKey]float64) (share, transmissionFactor float64) {
	transmissionFactor = 1
	first := true

	for i := 0; i+1 < len(flow.Path); i++ {
		key := world.NewLinkKey(flow.Path[i], flow.Path[i+1])
		link, ok := e.w.Links[key]
		if !ok {
			return 0, 0
		}
		linkShare := shares[key]
		if first || linkShare < share {
			share = linkShare
		}
		factor := 1.0
		if link.TransmissionDelay > 0 {
			factor = 1 / (1 + link.TransmissionDelay)
		}
		if first || factor < transmissionFactor {
			transmissionFactor = factor
		}
		first = false
	}

	if first {
		// a single-switch path (source and target share a switch) has no
		// links to throttle against; throughput is unconstrained by the network.
		return world.Inf, 1
	}
	return share, transmissionFactor
}
