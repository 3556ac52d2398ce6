package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
# build parameters
[hnsw]
M=32
ef_construction=300
random_seed=7

[search]
ef=64
num_threads=4
use_prefetch=false

[quantization]
nbits=4
`))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.HNSW.M)
	assert.Equal(t, 300, cfg.HNSW.EFConstruction)
	assert.Equal(t, int64(7), cfg.HNSW.RandomSeed)
	// Missing keys keep their defaults.
	assert.Equal(t, 1_000_000, cfg.HNSW.MaxElements)

	assert.Equal(t, 64, cfg.Search.EF)
	assert.Equal(t, 4, cfg.Search.NumThreads)
	assert.False(t, cfg.Search.UsePrefetch)
	assert.Equal(t, 1000, cfg.Search.BatchSize)

	assert.Equal(t, 4, cfg.Quantization.NBits)
	assert.Equal(t, 256, cfg.Quantization.NumCentroids)
}

func TestParseIgnoresUnknown(t *testing.T) {
	cfg, err := Parse([]byte(`
stray line outside any section
[hnsw]
M=8
future_knob=1

[telemetry]
endpoint=localhost
`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.HNSW.M)
	assert.Equal(t, 200, cfg.HNSW.EFConstruction)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gannet.ini")
	require.NoError(t, os.WriteFile(path, []byte("[search]\nef=128\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Search.EF)

	_, err = Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
