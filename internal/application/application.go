// Package application implements the per-tick application step: rolling up
// whether every one of an application's services is currently available,
// and tallying downtime steps.
package application

import "github.com/marcoskonzen/trustedge/internal/world"

// Step records app's availability for this step and extends its downtime
// tally when any hosted service is unavailable.
func Step(w *world.World, app *world.Application) {
	available := Available(w, app)
	app.AvailabilityHistory = append(app.AvailabilityHistory, available)
	if !available {
		app.DowntimeHistory++
	}
}

// Available reports whether every one of app's services is currently
// available; an application with no services is vacuously available.
func Available(w *world.World, app *world.Application) bool {
	for _, sid := range app.Services {
		svc := w.Services[sid]
		if svc == nil || !svc.Available {
			return false
		}
	}
	return true
}
