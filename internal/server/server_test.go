package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

func threeSwitchWorld() *world.World {
	w := world.New()
	w.Switches[1] = &world.Switch{ID: 1}
	w.Switches[2] = &world.Switch{ID: 2}
	w.Switches[3] = &world.Switch{ID: 3}
	w.Links[world.NewLinkKey(1, 2)] = &world.NetworkLink{A: 1, B: 2, BandwidthMbps: 100, DelayMs: 1}
	w.Links[world.NewLinkKey(2, 3)] = &world.NetworkLink{A: 2, B: 3, BandwidthMbps: 100, DelayMs: 5}
	return w
}

func TestNewGenerators_SeedsInitialFailureTrace(t *testing.T) {
	w := threeSwitchWorld()
	w.Servers[1] = &world.Server{ID: 1, SwitchID: 1, TimeToBoot: 3, FailureModelID: 1}
	w.FailureModels[1] = &world.FailureModel{
		ID:                      1,
		ServerID:                1,
		NumberOfFailures:        world.IntBounds{Lower: 1, Upper: 1},
		FailureDuration:         world.IntBounds{Lower: 5, Upper: 5},
		IntervalBetweenFailures: world.IntBounds{Lower: 10, Upper: 10},
		IntervalBetweenSets:     world.IntBounds{Lower: 50, Upper: 50},
	}

	gens := NewGenerators(1, w)

	require.NotNil(t, gens.byModel[1])
	require.Len(t, w.FailureModels[1].FailureTrace, 1)
	assert.NotEmpty(t, w.FailureModels[1].FailureTrace[0])
}

func TestStep_NoFailureModel_StaysAvailable(t *testing.T) {
	w := threeSwitchWorld()
	srv := &world.Server{ID: 1, SwitchID: 1, Available: true, Status: world.StatusAvailable}
	w.Servers[1] = srv

	Step(w, topology.New(w), &Generators{}, 5, srv)

	assert.True(t, srv.Available)
	require.Len(t, srv.AvailableHistory, 1)
	assert.True(t, srv.AvailableHistory[0])
}

func TestStep_ResolvesStatusFromPreSeededTrace(t *testing.T) {
	w := threeSwitchWorld()
	srv := &world.Server{ID: 1, SwitchID: 1, FailureModelID: 1, Available: true, Status: world.StatusAvailable}
	w.Servers[1] = srv
	w.FailureModels[1] = &world.FailureModel{
		ID:       1,
		ServerID: 1,
		FailureTrace: [][]world.FailureRecord{
			{{FailureStartsAt: 10, FailureEndsAt: 14, StartsBootingAt: 14, FinishesBootingAt: 17, BecomesAvailableAt: 17}},
		},
	}

	g := topology.New(w)
	Step(w, g, &Generators{}, 5, srv)
	assert.Equal(t, world.StatusAvailable, srv.Status)

	Step(w, g, &Generators{}, 12, srv)
	assert.Equal(t, world.StatusFailing, srv.Status)
	assert.False(t, srv.Available)
}

func TestDrainWaitingQueue_CreatesFlowFromNearestRegistry(t *testing.T) {
	w := threeSwitchWorld()
	target := &world.Server{ID: 10, SwitchID: 3, MaxConcurrentLayerDownload: 2}
	w.Servers[10] = target

	farRegistry := &world.Server{ID: 1, SwitchID: 1, IsRegistry: true, Available: true}
	w.Servers[1] = farRegistry
	w.Layers[100] = &world.Layer{ID: 100, Digest: "d1", SizeMB: 50, ServerID: 1}
	farRegistry.Layers = []world.ID{100}

	nearRegistry := &world.Server{ID: 2, SwitchID: 2, IsRegistry: true, Available: true}
	w.Servers[2] = nearRegistry
	w.Layers[200] = &world.Layer{ID: 200, Digest: "d1", SizeMB: 50, ServerID: 2}
	nearRegistry.Layers = []world.ID{200}

	wanted := &world.Layer{ID: 999, Digest: "d1", SizeMB: 50}
	w.Layers[999] = wanted
	target.WaitingQueue = []world.ID{999}

	g := topology.New(w)
	drainWaitingQueue(w, g, target)

	assert.Empty(t, target.WaitingQueue)
	require.Len(t, target.DownloadQueue, 1)

	flow := w.Flows[target.DownloadQueue[0]]
	require.NotNil(t, flow)
	assert.Equal(t, world.FlowLayer, flow.Kind)
	// switch 2 is one hop from switch 3; switch 1 is two hops — nearer wins.
	assert.Equal(t, world.ID(2), flow.Source)
}

func TestDrainWaitingQueue_RespectsConcurrencyLimit(t *testing.T) {
	w := threeSwitchWorld()
	target := &world.Server{ID: 10, SwitchID: 3, MaxConcurrentLayerDownload: 1}
	w.Servers[10] = target

	reg := &world.Server{ID: 1, SwitchID: 1, IsRegistry: true, Available: true}
	w.Servers[1] = reg
	w.Layers[100] = &world.Layer{ID: 100, Digest: "d1", SizeMB: 50, ServerID: 1}
	reg.Layers = []world.ID{100}

	w.Layers[901] = &world.Layer{ID: 901, Digest: "d1", SizeMB: 10}
	w.Layers[902] = &world.Layer{ID: 902, Digest: "d1", SizeMB: 10}
	target.WaitingQueue = []world.ID{901, 902}

	drainWaitingQueue(w, topology.New(w), target)

	assert.Len(t, target.DownloadQueue, 1)
	assert.Equal(t, []world.ID{902}, target.WaitingQueue)
}

func TestDrainWaitingQueue_StallsWhenNoRegistryHasLayer(t *testing.T) {
	w := threeSwitchWorld()
	target := &world.Server{ID: 10, SwitchID: 3, MaxConcurrentLayerDownload: 2}
	w.Servers[10] = target
	w.Layers[999] = &world.Layer{ID: 999, Digest: "missing", SizeMB: 50}
	target.WaitingQueue = []world.ID{999}

	drainWaitingQueue(w, topology.New(w), target)

	assert.Equal(t, []world.ID{999}, target.WaitingQueue)
	assert.Empty(t, target.DownloadQueue)
}

func TestApplyLayerFlowCompletion_AddsLayerAndDiskDemand(t *testing.T) {
	w := threeSwitchWorld()
	target := &world.Server{ID: 10, SwitchID: 3}
	w.Servers[10] = target
	target.DownloadQueue = []world.ID{1}

	w.Layers[999] = &world.Layer{ID: 999, Digest: "d1", SizeMB: 75}
	flow := &world.Flow{ID: 1, Kind: world.FlowLayer, Target: 10, LayerID: 999}

	ApplyLayerFlowCompletion(w, flow)

	assert.Empty(t, target.DownloadQueue)
	require.Len(t, target.Layers, 1)
	newLayer := w.Layers[target.Layers[0]]
	assert.Equal(t, "d1", newLayer.Digest)
	assert.Equal(t, 75.0, target.Demand.DiskMB)
}
