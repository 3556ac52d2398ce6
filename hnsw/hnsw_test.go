package hnsw

import (
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/graph"
)

func randData(seed int64, n, dim int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return data
}

func quietBuilder(t *testing.T, metric distance.Metric, dim int, optFns ...func(o *Options)) *Builder {
	t.Helper()
	b, err := NewBuilder(metric, dim, append([]func(o *Options){func(o *Options) {
		o.Logger = slog.New(slog.DiscardHandler)
	}}, optFns...)...)
	require.NoError(t, err)
	return b
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(distance.MetricL2, 0)
	assert.Error(t, err)

	_, err = NewBuilder(distance.MetricL2, 8, func(o *Options) { o.M = -1 })
	assert.Error(t, err)
}

func TestBuildStructure(t *testing.T) {
	const n, dim, m = 300, 16, 8
	data := randData(1, n, dim)

	b := quietBuilder(t, distance.MetricL2, dim, func(o *Options) { o.M = m })
	g, err := b.Build(data, n)
	require.NoError(t, err)

	assert.Equal(t, n, g.NumNodes())
	assert.Equal(t, 2*m, g.MaxDegree())
	require.Len(t, g.EntryPoints(), 1)

	md := g.Metadata()
	assert.Equal(t, "HNSWBuilder", md.BuilderName)
	assert.Equal(t, "L2", md.DistanceType)

	li := g.Initializer()
	require.NotNil(t, li)
	assert.Equal(t, n, li.N())
	assert.Equal(t, m, li.K())

	// The entry point sits on the highest level.
	epLevel := li.Level(li.EntryPoint())
	for u := int32(0); u < int32(n); u++ {
		assert.LessOrEqual(t, li.Level(u), epLevel)
	}

	// Every row respects the sentinel layout and id range.
	for u := int32(0); u < int32(n); u++ {
		row := g.Neighbors(u)
		sawSentinel := false
		for _, v := range row {
			if v == graph.EmptyID {
				sawSentinel = true
				continue
			}
			require.False(t, sawSentinel, "edge after sentinel in row %d", u)
			require.GreaterOrEqual(t, v, int32(0))
			require.Less(t, v, int32(n))
			require.NotEqual(t, u, v, "self loop at %d", u)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	const n, dim = 200, 8
	data := randData(7, n, dim)

	build := func() []byte {
		b := quietBuilder(t, distance.MetricL2, dim, func(o *Options) {
			o.M = 8
			o.EFConstruction = 100
			o.RandomSeed = 99
		})
		g, err := b.Build(data, n)
		require.NoError(t, err)
		raw, err := g.Bytes()
		require.NoError(t, err)
		return raw
	}

	assert.Equal(t, build(), build())
}

func TestBuildConnectivity(t *testing.T) {
	// Every node must be reachable from the entry point at layer 0;
	// otherwise it can never be returned by a search.
	const n, dim = 300, 16
	data := randData(3, n, dim)

	b := quietBuilder(t, distance.MetricL2, dim)
	g, err := b.Build(data, n)
	require.NoError(t, err)

	seen := make([]bool, n)
	queue := []int32{g.EntryPoints()[0]}
	seen[queue[0]] = true
	reached := 1
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.Neighbors(u) {
			if v == graph.EmptyID {
				break
			}
			if !seen[v] {
				seen[v] = true
				reached++
				queue = append(queue, v)
			}
		}
	}
	// Bidirectional linking keeps the graph connected on uniform
	// data; allow a tiny slack for pruned stragglers.
	assert.GreaterOrEqual(t, reached, n*99/100)
}

func TestSelectNeighborsHeuristic(t *testing.T) {
	// Two candidates clustered on the query's x axis and one further
	// away but in a different direction: the heuristic must not keep
	// all members of the tight cluster.
	dim := 2
	data := []float32{
		0, 0, // query/node 0
		1, 0, // 1: close
		1.1, 0, // 2: clustered with 1
		0, 1.5, // 3: further but diverse
	}

	b := quietBuilder(t, distance.MetricL2, dim)
	b.data = data
	b.n = 4

	q := b.vec(0)
	cands := []candidate{
		{id: 1, dist: b.dist(q, b.vec(1))},
		{id: 2, dist: b.dist(q, b.vec(2))},
		{id: 3, dist: b.dist(q, b.vec(3))},
	}

	selected := b.selectNeighbors(q, cands, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, int32(1), selected[0].id)
	// Node 2 is closer to node 1 than to the query and is skipped.
	assert.Equal(t, int32(3), selected[1].id)
}

func TestRandomLevelDistribution(t *testing.T) {
	b := quietBuilder(t, distance.MetricL2, 8, func(o *Options) { o.M = 16 })

	counts := map[int]int{}
	for i := 0; i < 100000; i++ {
		counts[b.randomLevel()]++
	}
	// With mult = 1/ln(16), P(level 0) = 1 − 1/16.
	assert.InDelta(t, 0.9375, float64(counts[0])/100000, 0.01)
	assert.Greater(t, counts[0], counts[1])
}

func TestStats(t *testing.T) {
	const n, dim = 150, 8
	data := randData(5, n, dim)

	b := quietBuilder(t, distance.MetricL2, dim)
	_, err := b.Build(data, n)
	require.NoError(t, err)

	s := b.Stats()
	assert.Equal(t, n, s.Nodes)
	total := 0
	for _, c := range s.LevelCount {
		total += c
	}
	assert.Equal(t, n, total)
	assert.Greater(t, s.LevelCount[0], n/2)
}
