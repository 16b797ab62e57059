// Package migration drives a service's migration state machine one tick at
// a time: waiting for layers to start downloading, pulling layers onto the
// target, transferring live service state, and finishing the hand-off. It
// also enforces the live-migration invariant and the cancellation paths
// (the origin failing, the user walking away mid-transfer).
package migration

import (
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Step advances svc's open migration, if any, by one tick.
func Step(w *world.World, g *topology.Graph, step int, svc *world.Service) {
	mig := svc.OpenMigration()
	if mig == nil {
		return
	}

	origin := w.Servers[mig.Origin]
	target := w.Servers[mig.Target]
	isRecovery := mig.Reason == world.ReasonServerFailed

	enforceLiveMigration(svc, mig, origin, target)

	cancellable := mig.Status == world.MigrationWaiting || mig.Status == world.MigrationPullingLayers
	if !isRecovery && cancellable && stoppedAccessing(w, svc, step) {
		interrupt(w, svc, mig, origin, target, step)
		return
	}

	image := w.Images[svc.ImageID]

	switch mig.Status {
	case world.MigrationWaiting:
		mig.WaitingTime++
	case world.MigrationPullingLayers:
		mig.PullingLayersTime++
	case world.MigrationMigratingState:
		mig.MigratingStateTime++
	}

	switch mig.Status {
	case world.MigrationWaiting:
		if anyLayerPresentOrInFlight(w, target, image) {
			mig.Status = world.MigrationPullingLayers
		}
	case world.MigrationPullingLayers:
		if allLayersResident(w, target, image) {
			onLayersReady(w, g, svc, mig, origin, target, step, isRecovery)
		}
	}

	if mig.Status == world.MigrationFinished {
		finish(w, svc, mig, origin, target, step)
	}
}

// OnStateFlowComplete finishes svc's migration once its service-state
// transfer flow has fully landed on the target. The scheduler calls this for
// every flow engine completion whose Kind is world.FlowServiceState.
func OnStateFlowComplete(w *world.World, step int, svc *world.Service) {
	mig := svc.OpenMigration()
	if mig == nil || mig.Status != world.MigrationMigratingState {
		return
	}
	mig.Status = world.MigrationFinished
	finish(w, svc, mig, w.Servers[mig.Origin], w.Servers[mig.Target], step)
}

// enforceLiveMigration keeps svc bound to the origin while layers are still
// being fetched and the origin remains available, and to the target
// otherwise — the invariant that makes a migration "live" instead of a
// stop-the-world move.
func enforceLiveMigration(svc *world.Service, mig *world.Migration, origin, target *world.Server) {
	downloading := mig.Status == world.MigrationWaiting || mig.Status == world.MigrationPullingLayers
	liveOnOrigin := downloading && origin != nil && origin.Available

	expected := mig.Target
	expectedServer := target
	if liveOnOrigin {
		expected = mig.Origin
		expectedServer = origin
	}

	if svc.ServerID == expected {
		return
	}

	if origin != nil {
		origin.Services = removeID(origin.Services, svc.ID)
	}
	if target != nil {
		target.Services = removeID(target.Services, svc.ID)
	}
	svc.ServerID = expected
	if expectedServer != nil {
		expectedServer.Services = appendUniqueID(expectedServer.Services, svc.ID)
	}
}

// stoppedAccessing reports whether the application's first user has no
// active access window at step, which cancels a non-recovery migration.
func stoppedAccessing(w *world.World, svc *world.Service, step int) bool {
	app := w.Applications[svc.ApplicationID]
	if app == nil || len(app.Users) == 0 {
		return false
	}
	user := w.Users[app.Users[0]]
	if user == nil {
		return false
	}
	pattern := user.AccessPatterns[svc.ApplicationID]
	if pattern == nil {
		return false
	}
	_, accessing := pattern.ActiveWindow(step)
	return !accessing
}

func anyLayerPresentOrInFlight(w *world.World, target *world.Server, image *world.Image) bool {
	if target == nil || image == nil {
		return false
	}
	for _, lid := range target.Layers {
		if l := w.Layers[lid]; l != nil && containsDigest(image.LayerDigests, l.Digest) {
			return true
		}
	}
	for _, fid := range target.DownloadQueue {
		f := w.Flows[fid]
		if f == nil || f.Kind != world.FlowLayer {
			continue
		}
		if l := w.Layers[f.LayerID]; l != nil && containsDigest(image.LayerDigests, l.Digest) {
			return true
		}
	}
	return false
}

func allLayersResident(w *world.World, target *world.Server, image *world.Image) bool {
	if target == nil || image == nil {
		return false
	}
	resident := 0
	for _, lid := range target.Layers {
		if l := w.Layers[lid]; l != nil && containsDigest(image.LayerDigests, l.Digest) {
			resident++
		}
	}
	return resident == len(image.LayerDigests)
}

// onLayersReady runs once all of the service's image layers are resident on
// the target: it installs the image, releases the origin's reserved
// capacity, and either finishes immediately (recovery migrations never move
// live state, nor do stateless services) or opens the service-state flow.
func onLayersReady(w *world.World, g *topology.Graph, svc *world.Service, mig *world.Migration, origin, target *world.Server, step int, isRecovery bool) {
	if target != nil && !containsID(target.Images, svc.ImageID) {
		target.Images = append(target.Images, svc.ImageID)
	}

	if origin != nil && origin.Available {
		origin.Demand.CPUCores -= svc.CPUDemand
		origin.Demand.MemoryGB -= svc.MemoryDemand
	}

	if isRecovery || svc.StateBytes <= 0 || origin == nil {
		mig.Status = world.MigrationFinished
		return
	}

	path, _, err := g.ShortestPath(origin.SwitchID, target.SwitchID)
	if err != nil {
		// no route to carry live state: the migration still completes, just
		// without a live cutover, rather than stalling forever.
		mig.Status = world.MigrationFinished
		return
	}

	mig.Status = world.MigrationMigratingState
	svc.Available = false

	flow := &world.Flow{
		ID:                  w.NewFlowID(),
		Kind:                world.FlowServiceState,
		Source:              origin.ID,
		Target:              target.ID,
		Path:                path,
		DataToTransferBytes: svc.StateBytes,
		Status:              world.FlowActive,
		ServiceID:           svc.ID,
	}
	w.Flows[flow.ID] = flow
	mig.StateFlowID = flow.ID
	g.Allocate(path, flow.ID)
}

// interrupt cancels an in-progress migration because the user stopped
// accessing the application: the service is released from both ends and
// left unbound until the placement policy re-provisions it.
func interrupt(w *world.World, svc *world.Service, mig *world.Migration, origin, target *world.Server, step int) {
	mig.Status = world.MigrationInterrupted
	mig.End = step
	mig.InterruptReason = string(world.ReasonUserStoppedAccess)
	mig.InterruptedTime++

	if target != nil {
		target.Services = removeID(target.Services, svc.ID)
	}
	if origin != nil {
		origin.Services = removeID(origin.Services, svc.ID)
	}
	if cur := w.Servers[svc.ServerID]; cur != nil {
		cur.Demand.CPUCores -= svc.CPUDemand
		cur.Demand.MemoryGB -= svc.MemoryDemand
	}
	if target != nil && svc.ServerID != target.ID {
		target.Demand.CPUCores -= svc.CPUDemand
		target.Demand.MemoryGB -= svc.MemoryDemand
	}
	svc.ServerID = 0
	svc.Available = false
}

// finish completes a migration: the service's binding moves fully to the
// target, the origin's bookkeeping is dropped, and the service becomes
// available again.
func finish(w *world.World, svc *world.Service, mig *world.Migration, origin, target *world.Server, step int) {
	mig.End = step

	if origin != nil {
		origin.Services = removeID(origin.Services, svc.ID)
	}
	if target != nil {
		target.Services = appendUniqueID(target.Services, svc.ID)
	}
	svc.ServerID = mig.Target
	svc.Available = true
	svc.BeingProvisioned = false
}
