package topology

import "errors"

// ErrNoPath is wrapped by ShortestPath when the topology graph is
// disconnected between the requested switches.
var ErrNoPath = errors.New("topology: disconnected")
