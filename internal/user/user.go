// Package user implements the per-tick user step: advancing each user's
// access pattern, tracking whether they're currently making a request, and
// recomputing their communication path with an application on every step
// the application is fully available.
package user

import (
	"github.com/marcoskonzen/trustedge/internal/application"
	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

// Step advances user's mobility trace and, for every application it holds an
// access pattern for, updates its making-requests flag and communication
// path.
func Step(w *world.World, g *topology.Graph, step int, user *world.User) {
	advanceMobility(user, step)

	for appID, pattern := range user.AccessPatterns {
		app := w.Applications[appID]
		if app == nil {
			continue
		}

		_, making := pattern.WindowAt(step)
		user.MakingRequests[appID] = making

		if application.Available(w, app) {
			user.CommunicationPaths[appID] = primaryPath(w, g, user, app)
		} else {
			user.CommunicationPaths[appID] = nil
		}
	}
}

func advanceMobility(user *world.User, step int) {
	if step >= 0 && step < len(user.CoordinatesTrace) {
		user.Coordinates = user.CoordinatesTrace[step]
	}
	if step >= 0 && step < len(user.BaseStationTrace) {
		user.BaseStationID = user.BaseStationTrace[step]
	}
}

// primaryPath routes from the user's base station to the server hosting the
// application's first service — the service a user's application chain
// fronts with, and the one its delay SLA is measured against.
func primaryPath(w *world.World, g *topology.Graph, user *world.User, app *world.Application) []world.ID {
	if len(app.Services) == 0 {
		return nil
	}
	svc := w.Services[app.Services[0]]
	if svc == nil {
		return nil
	}
	srv := w.Servers[svc.ServerID]
	if srv == nil {
		return nil
	}
	path, _, err := g.ShortestPath(user.BaseStationID, srv.SwitchID)
	if err != nil {
		return nil
	}
	return path
}
