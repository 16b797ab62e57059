package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoskonzen/trustedge/internal/policy"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// buildWorld wires a registry server holding one layer, an empty edge
// server able to pull it, and a single stateless service/application/user
// chain that needs placing.
func buildWorld() *world.World {
	w := world.New()
	w.Switches[1] = &world.Switch{ID: 1}
	w.Switches[2] = &world.Switch{ID: 2}
	w.Links[world.NewLinkKey(1, 2)] = &world.NetworkLink{A: 1, B: 2, BandwidthMbps: 1000, DelayMs: 2}

	registry := &world.Server{
		ID: 2, SwitchID: 2, Available: true, IsRegistry: true,
		Capacity: world.Capacity{CPUCores: 8, MemoryGB: 8, DiskMB: 1000},
	}
	w.Servers[2] = registry

	target := &world.Server{
		ID: 1, SwitchID: 1, Available: true,
		Capacity:                   world.Capacity{CPUCores: 8, MemoryGB: 8, DiskMB: 1000},
		MaxConcurrentLayerDownload: 2,
	}
	w.Servers[1] = target

	catalogLayer := &world.Layer{ID: 1, Digest: "sha256:d1", SizeMB: 10}
	w.Layers[1] = catalogLayer
	residentLayer := &world.Layer{ID: 2, Digest: "sha256:d1", SizeMB: 10, ServerID: registry.ID}
	w.Layers[2] = residentLayer
	registry.Layers = []world.ID{2}

	w.Images[1] = &world.Image{ID: 1, LayerDigests: []string{"sha256:d1"}}

	svc := &world.Service{ID: 1, ApplicationID: 1, ImageID: 1, CPUDemand: 1, MemoryDemand: 1}
	w.Services[1] = svc

	w.Applications[1] = &world.Application{ID: 1, Services: []world.ID{1}, Users: []world.ID{1}}

	u := world.NewUser(1)
	u.BaseStationID = 1
	u.DelaySLAs[1] = 1000
	u.AccessPatterns[1] = &world.AccessPattern{Windows: []world.AccessWindow{{Start: 0, End: 1000}}}
	w.Users[1] = u

	return w
}

func TestRun_ProvisionsAndCompletesLayerPull(t *testing.T) {
	w := buildWorld()
	s := New(w, 1, policy.Options{Algorithm: policy.FirstFitBaseline}, nil, nil, nil)

	err := s.Run(context.Background(), 10)
	require.NoError(t, err)

	svc := w.Services[1]
	require.NotEmpty(t, svc.Migrations)
	assert.Equal(t, world.ID(1), svc.ServerID, "service should finish bound to the edge server, not the registry")
	assert.True(t, svc.Available)

	target := w.Servers[1]
	found := false
	for _, lid := range target.Layers {
		if w.Layers[lid].Digest == "sha256:d1" {
			found = true
		}
	}
	assert.True(t, found, "the pulled layer should be resident on the target")
}

type fakeCollector struct {
	ticks []int
}

func (f *fakeCollector) CollectTick(w *world.World, step int) {
	f.ticks = append(f.ticks, step)
}

func TestRun_InvokesCollectorEveryTick(t *testing.T) {
	w := buildWorld()
	collector := &fakeCollector{}
	s := New(w, 1, policy.Options{Algorithm: policy.FirstFitBaseline}, nil, nil, collector)

	err := s.Run(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, collector.ticks)
}
