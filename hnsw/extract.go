package hnsw

import (
	"github.com/hupe1980/gannet/graph"
)

// extract copies the level-0 adjacency into a dense graph with row
// width 2M and the layers ≥ 1 into a layer initializer with K = M.
func (b *Builder) extract() *graph.Graph {
	g := graph.New(b.n, b.maxM0)

	for u := int32(0); int(u) < b.n; u++ {
		// SetNeighbors never fails here: layer lists are capped at
		// the layer's maximum degree during linking.
		_ = g.SetNeighbors(u, b.layers[u][0])
	}

	li := graph.NewLayerInitializer(b.n, b.m)
	for u := int32(0); int(u) < b.n; u++ {
		level := int(b.levels[u])
		li.SetLevel(u, level)
		for l := 1; l <= level; l++ {
			copy(li.Edges(l, u), b.layers[u][l])
		}
	}
	li.SetEntryPoint(b.ep)

	g.SetInitializer(li)
	g.SetEntryPoints([]int32{b.ep})
	g.SetMetadata(b.Name(), b.metric.String())
	return g
}

// Stats describes the layer structure of the last build.
type Stats struct {
	Nodes      int
	MaxLevel   int
	LevelCount []int // nodes per level
}

// Stats returns layer statistics for the last Build call.
func (b *Builder) Stats() Stats {
	s := Stats{
		Nodes:      b.n,
		MaxLevel:   b.epLevel,
		LevelCount: make([]int, b.epLevel+1),
	}
	for _, l := range b.levels {
		if int(l) <= b.epLevel {
			s.LevelCount[l]++
		}
	}
	return s
}
