// Package graph provides the dense proximity graph searched at query
// time, the HNSW layer initializer used to seed the descent, and their
// on-disk format.
package graph

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/gannet/internal/mem"
	"github.com/hupe1980/gannet/internal/pool"
	"github.com/hupe1980/gannet/internal/simd"
)

// EmptyID marks an unused neighbor slot.
const EmptyID int32 = -1

// DistFunc computes the query distance to a node id.
type DistFunc func(id int32) float32

// Metadata describes a graph without exposing its storage.
type Metadata struct {
	NumNodes     int
	MaxDegree    int
	TotalEdges   uint64
	BuilderName  string
	DistanceType string
	EntryPoints  []int32
}

// Graph is a dense adjacency structure: one fixed-width row of int32
// neighbor ids per node, sentinel-terminated, in a single 64
// byte-aligned allocation.
type Graph struct {
	numNodes  int
	maxDegree int

	edges       []int32 // numNodes*maxDegree, row-major
	degrees     []uint64
	entryPoints []int32
	totalEdges  uint64

	builderName  string
	distanceType string

	initializer *LayerInitializer
}

// New creates an empty graph with numNodes nodes of at most maxDegree
// neighbors each.
func New(numNodes, maxDegree int) *Graph {
	g := &Graph{
		numNodes:  numNodes,
		maxDegree: maxDegree,
		degrees:   make([]uint64, numNodes),
	}
	if numNodes > 0 && maxDegree > 0 {
		total := numNodes * maxDegree
		buf := mem.AllocAligned(total * 4)
		g.edges = unsafe.Slice((*int32)(unsafe.Pointer(&buf[0])), total) //nolint:gosec // typed view of the aligned block
		for i := range g.edges {
			g.edges[i] = EmptyID
		}
	}
	return g
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return g.numNodes }

// MaxDegree returns the fixed row width.
func (g *Graph) MaxDegree() int { return g.maxDegree }

// TotalEdges returns the number of stored edges.
func (g *Graph) TotalEdges() uint64 { return g.totalEdges }

// Neighbors returns the neighbor row of node u. Unused slots hold
// EmptyID. The slice borrows from the edge matrix.
func (g *Graph) Neighbors(u int32) []int32 {
	off := int(u) * g.maxDegree
	return g.edges[off : off+g.maxDegree]
}

// At returns the i-th neighbor slot of node u.
func (g *Graph) At(u int32, i int) int32 {
	return g.edges[int(u)*g.maxDegree+i]
}

// Degree returns the number of used slots in node u's row.
func (g *Graph) Degree(u int32) int {
	return int(g.degrees[u])
}

// SetNeighbors replaces node u's row with ids, padding with EmptyID.
func (g *Graph) SetNeighbors(u int32, ids []int32) error {
	if len(ids) > g.maxDegree {
		return fmt.Errorf("too many neighbors for node %d: %d > %d", u, len(ids), g.maxDegree)
	}
	row := g.Neighbors(u)
	prev := g.degrees[u]
	copy(row, ids)
	for i := len(ids); i < g.maxDegree; i++ {
		row[i] = EmptyID
	}
	g.degrees[u] = uint64(len(ids))
	g.totalEdges += uint64(len(ids)) - prev
	return nil
}

// AddEdge appends v to node u's row. Idempotent: an existing edge is
// left alone; a full row drops the edge.
func (g *Graph) AddEdge(u, v int32) {
	row := g.Neighbors(u)
	deg := int(g.degrees[u])
	for i := 0; i < deg; i++ {
		if row[i] == v {
			return
		}
	}
	if deg < g.maxDegree {
		row[deg] = v
		g.degrees[u]++
		g.totalEdges++
	}
}

// PrefetchNeighbors streams node u's row toward cache, up to lines
// cache lines.
func (g *Graph) PrefetchNeighbors(u int32, lines int) {
	if u < 0 || int(u) >= g.numNodes {
		return
	}
	off := int(u) * g.maxDegree
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&g.edges[off])), g.maxDegree*4) //nolint:gosec // byte view for prefetch
	simd.Prefetch(buf, lines)
}

// EntryPoints returns the search entry points.
func (g *Graph) EntryPoints() []int32 { return g.entryPoints }

// SetEntryPoints replaces the search entry points.
func (g *Graph) SetEntryPoints(eps []int32) {
	g.entryPoints = append(g.entryPoints[:0], eps...)
}

// Initializer returns the HNSW layer initializer, or nil.
func (g *Graph) Initializer() *LayerInitializer { return g.initializer }

// SetInitializer attaches the HNSW layer initializer.
func (g *Graph) SetInitializer(li *LayerInitializer) { g.initializer = li }

// SetMetadata records the builder and distance names carried in the
// serialized trailer.
func (g *Graph) SetMetadata(builderName, distanceType string) {
	g.builderName = builderName
	g.distanceType = distanceType
}

// Metadata returns a copy of the descriptive metadata.
func (g *Graph) Metadata() Metadata {
	eps := make([]int32, len(g.entryPoints))
	copy(eps, g.entryPoints)
	return Metadata{
		NumNodes:     g.numNodes,
		MaxDegree:    g.maxDegree,
		TotalEdges:   g.totalEdges,
		BuilderName:  g.builderName,
		DistanceType: g.distanceType,
		EntryPoints:  eps,
	}
}

// InitializeSearch seeds the candidate pool: through the layer
// initializer's greedy descent when present, otherwise by inserting
// every entry point directly.
func (g *Graph) InitializeSearch(p *pool.LinearPool, dist DistFunc) {
	if g.initializer != nil {
		g.initializer.Descend(p, dist)
		return
	}
	for _, ep := range g.entryPoints {
		p.Insert(ep, dist(ep))
		p.Vis.Set(ep)
	}
}
