package world

// World is the single owning arena for one simulation run. It is not safe
// for concurrent mutation — the scheduler guarantees at most one goroutine
// ever advances it, so unlike the teacher's domain.Graph this store carries
// no per-access mutex.
type World struct {
	Servers       map[ID]*Server
	Services      map[ID]*Service
	Applications  map[ID]*Application
	Users         map[ID]*User
	Layers        map[ID]*Layer
	Images        map[ID]*Image
	Switches      map[ID]*Switch
	Links         map[LinkKey]*NetworkLink
	FailureModels map[ID]*FailureModel
	Flows         map[ID]*Flow

	nextFlowID ID
	nextLayerID ID
}

func New() *World {
	return &World{
		Servers:       map[ID]*Server{},
		Services:      map[ID]*Service{},
		Applications:  map[ID]*Application{},
		Users:         map[ID]*User{},
		Layers:        map[ID]*Layer{},
		Images:        map[ID]*Image{},
		Switches:      map[ID]*Switch{},
		Links:         map[LinkKey]*NetworkLink{},
		FailureModels: map[ID]*FailureModel{},
		Flows:         map[ID]*Flow{},
	}
}

// Switch is a topology vertex (a network switch attached to base stations).
type Switch struct {
	ID ID
}

// LinkKey is an unordered pair used to key NetworkLink lookups.
type LinkKey struct {
	A, B ID
}

func NewLinkKey(a, b ID) LinkKey {
	if a > b {
		a, b = b, a
	}
	return LinkKey{A: a, B: b}
}

// NetworkLink is an undirected edge between two switches.
type NetworkLink struct {
	A, B              ID
	BandwidthMbps     float64
	DelayMs           float64
	TransmissionDelay float64

	ActiveFlows []ID
}

func (w *World) NewFlowID() ID {
	w.nextFlowID++
	return w.nextFlowID
}

func (w *World) NewLayerID() ID {
	w.nextLayerID++
	return w.nextLayerID
}

// ServerIDsSorted returns server ids in ascending order, the iteration order
// the tick scheduler's component-internal passes must use.
func (w *World) ServerIDsSorted() []ID {
	return sortedKeys(w.Servers)
}

func (w *World) ServiceIDsSorted() []ID {
	return sortedKeys(w.Services)
}

func (w *World) UserIDsSorted() []ID {
	return sortedKeys(w.Users)
}

func (w *World) ApplicationIDsSorted() []ID {
	return sortedKeys(w.Applications)
}

func (w *World) FlowIDsSorted() []ID {
	return sortedKeys(w.Flows)
}

func sortedKeys[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// insertion sort is fine: arenas are small (hundreds, not millions)
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}
