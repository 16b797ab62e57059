// Package topology models the network of switches and links edge servers
// sit on, and computes delay-weighted shortest paths between them.
package topology

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcoskonzen/trustedge/internal/world"
	"github.com/marcoskonzen/trustedge/pkg/cache"
)

// Graph is the undirected, delay-weighted topology. Unlike the teacher's
// domain.Graph it carries no mutex: the scheduler owns exclusive access to
// the world for the duration of a tick.
type Graph struct {
	w   *world.World
	c   cache.Cache
	ttl time.Duration
}

func New(w *world.World) *Graph {
	return &Graph{w: w}
}

// NewWithCache builds a Graph that memoizes ShortestPath results in c, keyed
// by the unordered switch pair. Links are static for the life of a run, so a
// path computed once stays valid for every later lookup of the same pair.
func NewWithCache(w *world.World, c cache.Cache, ttl time.Duration) *Graph {
	return &Graph{w: w, c: c, ttl: ttl}
}

type pathCacheEntry struct {
	Path  []world.ID `json:"path"`
	Delay float64    `json:"delay"`
}

func pathCacheKey(a, b world.ID) string {
	return fmt.Sprintf("topology:path:%d:%d", a, b)
}

func (g *Graph) neighbors(id world.ID) []world.ID {
	var out []world.ID
	for key := range g.w.Links {
		switch id {
		case key.A:
			out = append(out, key.B)
		case key.B:
			out = append(out, key.A)
		}
	}
	return out
}

func (g *Graph) link(a, b world.ID) (*world.NetworkLink, bool) {
	l, ok := g.w.Links[world.NewLinkKey(a, b)]
	return l, ok
}

type pqItem struct {
	id   world.ID
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool   { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)        { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)          { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath finds the delay-minimising path between two switches using
// Dijkstra's algorithm over link delay weights. Returns ErrNoPath if the
// switches are not connected. When the graph was built with NewWithCache,
// results are memoised by unordered switch pair and reused across calls.
func (g *Graph) ShortestPath(src, dst world.ID) ([]world.ID, float64, error) {
	if src == dst {
		return []world.ID{src}, 0, nil
	}

	if g.c != nil {
		key := world.NewLinkKey(src, dst)
		if entry, ok := g.lookupPath(key.A, key.B); ok {
			return orientPath(entry.Path, key.A, src), entry.Delay, nil
		}
	}

	path, delay, err := g.computeShortestPath(src, dst)
	if err != nil {
		return nil, 0, err
	}

	if g.c != nil {
		key := world.NewLinkKey(src, dst)
		canonical := orientPath(path, src, key.A)
		g.storePath(key.A, key.B, canonical, delay)
	}

	return path, delay, nil
}

// orientPath reverses path when it doesn't already start at want — used to
// translate between a cache entry's canonical (A<=B) direction and whichever
// direction the caller actually asked for. currentStart is the switch path
// currently starts from.
func orientPath(path []world.ID, currentStart, want world.ID) []world.ID {
	if len(path) == 0 || currentStart == want {
		return path
	}
	reversed := make([]world.ID, len(path))
	for i, id := range path {
		reversed[len(path)-1-i] = id
	}
	return reversed
}

func (g *Graph) lookupPath(a, b world.ID) (pathCacheEntry, bool) {
	raw, err := g.c.Get(context.Background(), pathCacheKey(a, b))
	if err != nil {
		return pathCacheEntry{}, false
	}
	var entry pathCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return pathCacheEntry{}, false
	}
	return entry, true
}

func (g *Graph) storePath(a, b world.ID, path []world.ID, delay float64) {
	raw, err := json.Marshal(pathCacheEntry{Path: path, Delay: delay})
	if err != nil {
		return
	}
	_ = g.c.Set(context.Background(), pathCacheKey(a, b), raw, g.ttl)
}

// computeShortestPath runs Dijkstra's algorithm uncached.
func (g *Graph) computeShortestPath(src, dst world.ID) ([]world.ID, float64, error) {
	dist := map[world.ID]float64{src: 0}
	prev := map[world.ID]world.ID{}
	visited := map[world.ID]bool{}

	pq := &priorityQueue{{id: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == dst {
			break
		}
		for _, nb := range g.neighbors(cur.id) {
			link, ok := g.link(cur.id, nb)
			if !ok {
				continue
			}
			nd := dist[cur.id] + link.DelayMs
			if existing, seen := dist[nb]; !seen || nd < existing {
				dist[nb] = nd
				prev[nb] = cur.id
				heap.Push(pq, pqItem{id: nb, dist: nd})
			}
		}
	}

	if _, ok := dist[dst]; !ok {
		return nil, 0, fmt.Errorf("%w: no path between switch %d and switch %d", ErrNoPath, src, dst)
	}

	path := []world.ID{dst}
	cur := dst
	for cur != src {
		p, ok := prev[cur]
		if !ok {
			return nil, 0, fmt.Errorf("%w: broken path reconstruction to switch %d", ErrNoPath, dst)
		}
		path = append([]world.ID{p}, path...)
		cur = p
	}
	return path, dist[dst], nil
}

// PathDelay sums link delay along an already-computed path.
func (g *Graph) PathDelay(path []world.ID) float64 {
	var total float64
	for i := 0; i+1 < len(path); i++ {
		if link, ok := g.link(path[i], path[i+1]); ok {
			total += link.DelayMs
		}
	}
	return total
}

// Allocate registers a flow against every link on its path.
func (g *Graph) Allocate(path []world.ID, flowID world.ID) {
	for i := 0; i+1 < len(path); i++ {
		if link, ok := g.link(path[i], path[i+1]); ok {
			link.ActiveFlows = append(link.ActiveFlows, flowID)
		}
	}
}

// Release removes a flow from every link on its path.
func (g *Graph) Release(path []world.ID, flowID world.ID) {
	for i := 0; i+1 < len(path); i++ {
		link, ok := g.link(path[i], path[i+1])
		if !ok {
			continue
		}
		for j, id := range link.ActiveFlows {
			if id == flowID {
				link.ActiveFlows = append(link.ActiveFlows[:j], link.ActiveFlows[j+1:]...)
				break
			}
		}
	}
}
