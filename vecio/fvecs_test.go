package vecio

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFvecsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dim = 20, 7
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()
	}

	path := filepath.Join(t.TempDir(), "base.fvecs")
	require.NoError(t, WriteFvecs(path, data, n, dim))

	got, gotN, gotDim, err := ReadFvecs(path)
	require.NoError(t, err)
	assert.Equal(t, n, gotN)
	assert.Equal(t, dim, gotDim)
	assert.Equal(t, data, got)
}

func TestIvecsRoundTrip(t *testing.T) {
	const n, dim = 5, 10
	data := make([]int32, n*dim)
	for i := range data {
		data[i] = int32(i)
	}

	path := filepath.Join(t.TempDir(), "gt.ivecs")
	require.NoError(t, WriteIvecs(path, data, n, dim))

	got, gotN, gotDim, err := ReadIvecs(path)
	require.NoError(t, err)
	assert.Equal(t, n, gotN)
	assert.Equal(t, dim, gotDim)
	assert.Equal(t, data, got)
}

func TestReadRejectsInconsistentDim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fvecs")

	// Two rows claiming different dimensions.
	raw := []byte{
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, _, _, err := ReadFvecs(path)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadRejectsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.fvecs")
	require.NoError(t, os.WriteFile(path, []byte{4, 0, 0, 0, 1, 2}, 0o644))

	_, _, _, err := ReadFvecs(path)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fvecs")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, _, _, err := ReadFvecs(path)
	assert.ErrorIs(t, err, ErrMalformed)
}
