package migration

import "github.com/marcoskonzen/trustedge/internal/world"

// Open starts a new migration of svc onto target: it reserves target's
// capacity, queues whatever image layers target doesn't already have or
// isn't already fetching, and appends a fresh, waiting Migration record.
// The caller (the placement policy) is responsible for having already
// confirmed target.HasCapacityToHost(svc, image).
func Open(w *world.World, svc *world.Service, target *world.Server, reason world.MigrationReason, step int) *world.Migration {
	mig := &world.Migration{
		Origin: svc.ServerID,
		Target: target.ID,
		Start:  step,
		Status: world.MigrationWaiting,
		Reason: reason,
	}
	svc.Migrations = append(svc.Migrations, mig)
	svc.BeingProvisioned = true

	target.Demand.CPUCores += svc.CPUDemand
	target.Demand.MemoryGB += svc.MemoryDemand

	image := w.Images[svc.ImageID]
	if image == nil {
		return mig
	}
	for _, digest := range image.LayerDigests {
		if hasResidentDigest(w, target, digest) || hasQueuedOrInFlightDigest(w, target, digest) {
			continue
		}
		catalog := findCatalogLayer(w, digest)
		if catalog == nil {
			continue
		}
		target.WaitingQueue = append(target.WaitingQueue, catalog.ID)
	}
	return mig
}

func hasResidentDigest(w *world.World, srv *world.Server, digest string) bool {
	for _, lid := range srv.Layers {
		if l := w.Layers[lid]; l != nil && l.Digest == digest {
			return true
		}
	}
	return false
}

func hasQueuedOrInFlightDigest(w *world.World, srv *world.Server, digest string) bool {
	for _, lid := range srv.WaitingQueue {
		if l := w.Layers[lid]; l != nil && l.Digest == digest {
			return true
		}
	}
	for _, fid := range srv.DownloadQueue {
		f := w.Flows[fid]
		if f == nil || f.Kind != world.FlowLayer {
			continue
		}
		if l := w.Layers[f.LayerID]; l != nil && l.Digest == digest {
			return true
		}
	}
	return false
}

// findCatalogLayer returns the template layer record for digest — one with
// no server bound to it yet — so its size/instruction metadata can be
// queued without mutating a resident copy.
func findCatalogLayer(w *world.World, digest string) *world.Layer {
	for _, l := range w.Layers {
		if l.ServerID == 0 && l.Digest == digest {
			return l
		}
	}
	return nil
}
