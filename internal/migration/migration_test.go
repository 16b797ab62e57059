package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

func baseWorld() (*world.World, *topology.Graph) {
	w := world.New()
	w.Switches[1] = &world.Switch{ID: 1}
	w.Switches[2] = &world.Switch{ID: 2}
	w.Links[world.NewLinkKey(1, 2)] = &world.NetworkLink{A: 1, B: 2, BandwidthMbps: 100, DelayMs: 5}

	w.Servers[10] = &world.Server{ID: 10, SwitchID: 1, Available: true, Status: world.StatusAvailable}
	w.Servers[20] = &world.Server{ID: 20, SwitchID: 2, Available: true, Status: world.StatusAvailable}

	w.Images[1] = &world.Image{ID: 1, Digest: "img@sha256:abc", LayerDigests: []string{"layer@sha256:1"}}

	w.Applications[1] = &world.Application{ID: 1, Users: []world.ID{1}}
	user := world.NewUser(1)
	user.AccessPatterns[1] = &world.AccessPattern{Windows: []world.AccessWindow{{Start: 0, End: 1000}}}
	w.Users[1] = user

	return w, topology.New(w)
}

func serviceWithMigration(w *world.World, status world.MigrationStatus, reason world.MigrationReason, stateBytes float64) *world.Service {
	svc := &world.Service{ID: 1, ApplicationID: 1, ImageID: 1, CPUDemand: 2, MemoryDemand: 4, StateBytes: stateBytes, ServerID: 10}
	svc.Migrations = []*world.Migration{{
		Origin: 10,
		Target: 20,
		Start:  1,
		Status: status,
		Reason: reason,
	}}
	w.Services[1] = svc
	w.Servers[10].Services = []world.ID{1}
	return svc
}

func TestStep_Waiting_TransitionsToPullingLayers_WhenLayerIsDownloading(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationWaiting, world.ReasonProactive, 0)

	w.Layers[100] = &world.Layer{ID: 100, Digest: "layer@sha256:1", ServerID: 0}
	w.Flows[1] = &world.Flow{ID: 1, Kind: world.FlowLayer, LayerID: 100, Status: world.FlowActive}
	w.Servers[20].DownloadQueue = []world.ID{1}

	Step(w, g, 2, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationPullingLayers, mig.Status)
	assert.Equal(t, 1, mig.WaitingTime)
}

func TestStep_PullingLayers_FinishesImmediately_WhenServiceHasNoState(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationPullingLayers, world.ReasonProactive, 0)

	w.Layers[100] = &world.Layer{ID: 100, Digest: "layer@sha256:1", ServerID: 20}
	w.Servers[20].Layers = []world.ID{100}

	Step(w, g, 2, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationFinished, mig.Status)
	assert.Equal(t, world.ID(20), svc.ServerID)
	assert.True(t, svc.Available)
	assert.Contains(t, w.Servers[20].Services, world.ID(1))
	assert.NotContains(t, w.Servers[10].Services, world.ID(1))
}

func TestStep_PullingLayers_OpensStateFlow_WhenServiceIsStateful(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationPullingLayers, world.ReasonProactive, 500)

	w.Layers[100] = &world.Layer{ID: 100, Digest: "layer@sha256:1", ServerID: 20}
	w.Servers[20].Layers = []world.ID{100}

	Step(w, g, 2, svc)

	mig := svc.Migrations[0]
	require.Equal(t, world.MigrationMigratingState, mig.Status)
	assert.False(t, svc.Available)
	require.NotZero(t, mig.StateFlowID)

	flow := w.Flows[mig.StateFlowID]
	require.NotNil(t, flow)
	assert.Equal(t, world.FlowServiceState, flow.Kind)
	assert.Equal(t, 500.0, flow.DataToTransferBytes)
	assert.Equal(t, []world.ID{1, 2}, flow.Path)

	link := w.Links[world.NewLinkKey(1, 2)]
	assert.Contains(t, link.ActiveFlows, flow.ID)
}

func TestOnStateFlowComplete_FinishesMigration(t *testing.T) {
	w, _ := baseWorld()
	svc := serviceWithMigration(w, world.MigrationMigratingState, world.ReasonProactive, 500)

	OnStateFlowComplete(w, 10, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationFinished, mig.Status)
	assert.Equal(t, 10, mig.End)
	assert.True(t, svc.Available)
	assert.Equal(t, world.ID(20), svc.ServerID)
}

func TestStep_Interrupts_WhenUserStoppedAccessing(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationWaiting, world.ReasonProactive, 0)
	w.Users[1].AccessPatterns[1].Windows = []world.AccessWindow{{Start: 0, End: 5}}

	Step(w, g, 50, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationInterrupted, mig.Status)
	assert.Equal(t, "user_stopped_accessing", mig.InterruptReason)
	assert.Equal(t, 1, mig.InterruptedTime)
	assert.Equal(t, world.ID(0), svc.ServerID)
	assert.False(t, svc.Available)
}

func TestStep_MigratingState_IgnoresStoppedAccessing_ForNonRecoveryMigration(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationMigratingState, world.ReasonProactive, 500)
	svc.ServerID = 20
	svc.Available = false
	w.Users[1].AccessPatterns[1].Windows = []world.AccessWindow{{Start: 0, End: 5}}

	Step(w, g, 50, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationMigratingState, mig.Status, "state transfer must run to completion once started, even if the user walked away")
	assert.Equal(t, world.ID(20), svc.ServerID)
	assert.Equal(t, 0, mig.InterruptedTime)
}

func TestStep_RecoveryMigration_IgnoresStoppedAccessingAndSkipsStateTransfer(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationPullingLayers, world.ReasonServerFailed, 500)
	w.Servers[10].Available = false
	w.Users[1].AccessPatterns[1].Windows = []world.AccessWindow{{Start: 0, End: 5}}

	w.Layers[100] = &world.Layer{ID: 100, Digest: "layer@sha256:1", ServerID: 20}
	w.Servers[20].Layers = []world.ID{100}

	Step(w, g, 50, svc)

	mig := svc.Migrations[0]
	assert.Equal(t, world.MigrationFinished, mig.Status, "recovery migrations finish without live state transfer")
	assert.True(t, svc.Available)
}

func TestEnforceLiveMigration_KeepsServiceOnOriginWhileDownloadingAndOriginAvailable(t *testing.T) {
	w, g := baseWorld()
	svc := serviceWithMigration(w, world.MigrationPullingLayers, world.ReasonProactive, 0)
	svc.ServerID = 20 // simulate placement having pre-bound it to target

	Step(w, g, 2, svc)

	assert.Equal(t, world.ID(10), svc.ServerID, "service must stay on the origin while live and downloading")
	assert.Contains(t, w.Servers[10].Services, world.ID(1))
	assert.NotContains(t, w.Servers[20].Services, world.ID(1))
}
