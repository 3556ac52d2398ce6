package graph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gannet/blobstore"
	"github.com/hupe1980/gannet/internal/pool"
)

// testGraph builds a small graph with a flat initializer (all nodes
// at level 0) and full metadata.
func testGraph(t *testing.T) *Graph {
	t.Helper()

	g := New(6, 4)
	require.NoError(t, g.SetNeighbors(0, []int32{1, 2}))
	require.NoError(t, g.SetNeighbors(1, []int32{0, 3, 4}))
	require.NoError(t, g.SetNeighbors(2, []int32{0, 5}))
	require.NoError(t, g.SetNeighbors(3, []int32{1}))
	require.NoError(t, g.SetNeighbors(4, []int32{1, 5}))
	require.NoError(t, g.SetNeighbors(5, []int32{2, 4}))
	g.SetEntryPoints([]int32{0})
	g.SetMetadata("HNSWBuilder", "L2")

	li := NewLayerInitializer(6, 4)
	for u := int32(0); u < 6; u++ {
		li.SetLevel(u, 0)
	}
	g.SetInitializer(li)
	return g
}

func TestAddEdge(t *testing.T) {
	g := New(4, 2)

	g.AddEdge(0, 1)
	g.AddEdge(0, 1) // idempotent
	assert.Equal(t, 1, g.Degree(0))
	assert.Equal(t, uint64(1), g.TotalEdges())

	g.AddEdge(0, 2)
	g.AddEdge(0, 3) // row full, dropped
	assert.Equal(t, 2, g.Degree(0))
	assert.Equal(t, []int32{1, 2}, g.Neighbors(0))
}

func TestSetNeighborsSentinels(t *testing.T) {
	g := New(2, 4)
	require.NoError(t, g.SetNeighbors(0, []int32{1}))

	assert.Equal(t, []int32{1, EmptyID, EmptyID, EmptyID}, g.Neighbors(0))
	assert.Error(t, g.SetNeighbors(1, []int32{0, 0, 0, 0, 0}))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := testGraph(t)
	path := filepath.Join(t.TempDir(), "graph.bin")

	require.NoError(t, g.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, g.NumNodes(), loaded.NumNodes())
	assert.Equal(t, g.MaxDegree(), loaded.MaxDegree())
	assert.Equal(t, g.EntryPoints(), loaded.EntryPoints())
	assert.Equal(t, g.Metadata(), loaded.Metadata())
	for u := int32(0); u < int32(g.NumNodes()); u++ {
		assert.Equal(t, g.Neighbors(u), loaded.Neighbors(u))
	}

	// Re-saving the loaded graph reproduces the bytes exactly.
	orig, err := g.Bytes()
	require.NoError(t, err)
	resaved, err := loaded.Bytes()
	require.NoError(t, err)
	assert.Equal(t, orig, resaved)
}

func TestSaveLoadCompressed(t *testing.T) {
	g := testGraph(t)
	orig, err := g.Bytes()
	require.NoError(t, err)

	for _, ext := range []string{"graph.lz4", "graph.zst"} {
		path := filepath.Join(t.TempDir(), ext)
		require.NoError(t, g.Save(path))

		loaded, err := Load(path)
		require.NoError(t, err, ext)

		got, err := loaded.Bytes()
		require.NoError(t, err)
		assert.Equal(t, orig, got, ext)
	}
}

func TestLoadRejectsOutOfRangeID(t *testing.T) {
	g := testGraph(t)
	g.Neighbors(0)[0] = 99 // id beyond num nodes

	data, err := g.Bytes()
	require.NoError(t, err)

	_, err = ReadFrom(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrCorruptFormat)
}

func TestLoadRejectsDegreeMismatch(t *testing.T) {
	g := testGraph(t)
	g.degrees[0] = 1 // row holds 2 edges

	data, err := g.Bytes()
	require.NoError(t, err)

	_, err = ReadFrom(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrCorruptFormat)
}

func TestLoadRejectsTruncated(t *testing.T) {
	g := testGraph(t)
	data, err := g.Bytes()
	require.NoError(t, err)

	_, err = ReadFrom(bytes.NewReader(data[:len(data)/2]))
	assert.ErrorIs(t, err, ErrCorruptFormat)
}

func TestSaveFailureLeavesNoPartialFile(t *testing.T) {
	g := testGraph(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "graph.bin")

	require.Error(t, g.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDescend(t *testing.T) {
	// Two-level structure: node 0 (ep, level 1) links to node 2 at
	// layer 1; distances favor node 2, which must seed the pool.
	li := NewLayerInitializer(3, 2)
	li.SetLevel(0, 1)
	li.SetLevel(1, 0)
	li.SetLevel(2, 1)
	li.Edges(1, 0)[0] = 2
	li.Edges(1, 2)[0] = 0
	li.SetEntryPoint(0)

	dists := []float32{3, 2, 1}
	p := pool.NewLinearPool(3, 4)
	li.Descend(p, func(id int32) float32 { return dists[id] })

	require.Equal(t, 1, p.Size())
	assert.Equal(t, int32(2), p.ID(0))
	assert.Equal(t, float32(1), p.Dist(0))
	assert.True(t, p.Vis.Get(2))
}

func TestInitializeSearchWithoutInitializer(t *testing.T) {
	g := New(4, 2)
	g.SetEntryPoints([]int32{1, 3})

	p := pool.NewLinearPool(4, 4)
	g.InitializeSearch(p, func(id int32) float32 { return float32(id) })

	require.Equal(t, 2, p.Size())
	assert.Equal(t, int32(1), p.ID(0))
	assert.Equal(t, int32(3), p.ID(1))
	assert.True(t, p.Vis.Get(1))
	assert.True(t, p.Vis.Get(3))
}

func TestBlobStoreRoundTrip(t *testing.T) {
	g := testGraph(t)
	store := blobstore.NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, g.SaveToStore(ctx, store, "graphs/ann.bin"))

	loaded, err := LoadFromStore(ctx, store, "graphs/ann.bin")
	require.NoError(t, err)
	assert.Equal(t, g.Metadata(), loaded.Metadata())

	_, err = LoadFromStore(ctx, store, "graphs/absent.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
