package graph

import (
	"github.com/hupe1980/gannet/internal/pool"
)

// LayerInitializer holds the upper layers of an HNSW graph: per-node
// level and per-node upper-layer adjacency. Layer l (l ≥ 1) of node u
// occupies lists[u][(l−1)*K : l*K].
type LayerInitializer struct {
	n  int32
	k  int32
	ep int32

	levels []int32
	lists  [][]int32
}

// NewLayerInitializer creates an initializer for n nodes with k slots
// per layer.
func NewLayerInitializer(n, k int) *LayerInitializer {
	return &LayerInitializer{
		n:      int32(n),
		k:      int32(k),
		levels: make([]int32, n),
		lists:  make([][]int32, n),
	}
}

// N returns the node count.
func (li *LayerInitializer) N() int { return int(li.n) }

// K returns the per-layer slot count.
func (li *LayerInitializer) K() int { return int(li.k) }

// EntryPoint returns the topmost node.
func (li *LayerInitializer) EntryPoint() int32 { return li.ep }

// SetEntryPoint sets the topmost node.
func (li *LayerInitializer) SetEntryPoint(ep int32) { li.ep = ep }

// Level returns the level of node u.
func (li *LayerInitializer) Level(u int32) int { return int(li.levels[u]) }

// SetLevel sets the level of node u and sizes its adjacency storage,
// filling new slots with EmptyID.
func (li *LayerInitializer) SetLevel(u int32, level int) {
	li.levels[u] = int32(level)
	list := make([]int32, level*int(li.k))
	for i := range list {
		list[i] = EmptyID
	}
	li.lists[u] = list
}

// Edges returns the layer-level adjacency slice of node u.
func (li *LayerInitializer) Edges(level int, u int32) []int32 {
	off := (level - 1) * int(li.k)
	return li.lists[u][off : off+int(li.k)]
}

// At returns the i-th neighbor of node u at the given layer.
func (li *LayerInitializer) At(level int, u int32, i int) int32 {
	return li.lists[u][(level-1)*int(li.k)+i]
}

// Descend runs the greedy entry descent: starting from the entry
// point, at each layer from the top down to 1 it repeatedly moves to
// a strictly closer neighbor until none improves, then steps down.
// The final node is inserted into the pool and marked visited.
func (li *LayerInitializer) Descend(p *pool.LinearPool, dist DistFunc) {
	u := li.ep
	curDist := dist(u)
	for level := li.levels[u]; level > 0; level-- {
		changed := true
		for changed {
			changed = false
			list := li.Edges(int(level), u)
			for _, v := range list {
				if v == EmptyID {
					break
				}
				if d := dist(v); d < curDist {
					curDist = d
					u = v
					changed = true
				}
			}
		}
	}
	p.Insert(u, curDist)
	p.Vis.Set(u)
}
