package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoskonzen/trustedge/internal/topology"
	"github.com/marcoskonzen/trustedge/internal/world"
)

func fixtureWorld() (*world.World, *topology.Graph) {
	w := world.New()
	w.Switches[1] = &world.Switch{ID: 1}
	w.Switches[2] = &world.Switch{ID: 2}
	w.Links[world.NewLinkKey(1, 2)] = &world.NetworkLink{A: 1, B: 2, BandwidthMbps: 100, DelayMs: 3}

	w.Servers[10] = &world.Server{ID: 10, SwitchID: 2}
	w.Services[1] = &world.Service{ID: 1, Available: true, ServerID: 10}
	w.Applications[1] = &world.Application{ID: 1, Services: []world.ID{1}}

	return w, topology.New(w)
}

func TestStep_AdvancesMobilityFromTrace(t *testing.T) {
	w, g := fixtureWorld()
	u := world.NewUser(1)
	u.CoordinatesTrace = [][2]float64{{0, 0}, {1, 1}, {2, 2}}
	u.BaseStationTrace = []world.ID{1, 1, 2}

	Step(w, g, 2, u)

	assert.Equal(t, [2]float64{2, 2}, u.Coordinates)
	assert.Equal(t, world.ID(2), u.BaseStationID)
}

func TestStep_MakingRequestsReflectsAccessWindow(t *testing.T) {
	w, g := fixtureWorld()
	u := world.NewUser(1)
	u.BaseStationID = 1
	u.AccessPatterns[1] = &world.AccessPattern{Windows: []world.AccessWindow{{Start: 5, End: 10}}}

	Step(w, g, 3, u)
	assert.False(t, u.MakingRequests[1])

	Step(w, g, 7, u)
	assert.True(t, u.MakingRequests[1])
}

func TestStep_ComputesCommunicationPath_WhenApplicationAvailable(t *testing.T) {
	w, g := fixtureWorld()
	u := world.NewUser(1)
	u.BaseStationID = 1
	u.AccessPatterns[1] = &world.AccessPattern{Windows: []world.AccessWindow{{Start: 0, End: 100}}}

	Step(w, g, 1, u)

	require.NotNil(t, u.CommunicationPaths[1])
	assert.Equal(t, []world.ID{1, 2}, u.CommunicationPaths[1])
}

func TestStep_ClearsCommunicationPath_WhenApplicationUnavailable(t *testing.T) {
	w, g := fixtureWorld()
	w.Services[1].Available = false
	u := world.NewUser(1)
	u.BaseStationID = 1
	u.AccessPatterns[1] = &world.AccessPattern{Windows: []world.AccessWindow{{Start: 0, End: 100}}}
	u.CommunicationPaths[1] = []world.ID{1, 2}

	Step(w, g, 1, u)

	assert.Nil(t, u.CommunicationPaths[1])
}
