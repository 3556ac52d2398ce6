package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/internal/pool"
)

func randMatrix(rng *rand.Rand, n, dim int) []float32 {
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return data
}

func TestFP32RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dim = 50, 33

	q, err := NewFP32Quantizer(distance.MetricL2, dim)
	require.NoError(t, err)

	data := randMatrix(rng, n, dim)
	require.NoError(t, q.Train(data, n, dim))
	require.Equal(t, n, q.N())
	require.Equal(t, alignDim(dim)*4, q.CodeSize())

	out := make([]float32, dim)
	for i := 0; i < n; i++ {
		q.Decode(q.Code(i), out)
		// encode∘decode is exact identity for FP32.
		assert.Equal(t, data[i*dim:(i+1)*dim], out)
	}
}

func TestSQ8ErrorBound(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	const n, dim = 200, 64

	q, err := NewSQ8Quantizer(distance.MetricL2, dim, nil)
	require.NoError(t, err)

	data := randMatrix(rng, n, dim)
	require.NoError(t, q.Train(data, n, dim))

	out := make([]float32, dim)
	for i := 0; i < n; i++ {
		q.Decode(q.Code(i), out)
		for j := 0; j < dim; j++ {
			// Per-element reconstruction error stays within one
			// quantization step of that dimension.
			assert.LessOrEqual(t, float64(abs32(out[j]-data[i*dim+j])), float64(q.scale[j])+1e-6,
				"row %d dim %d", i, j)
		}
	}
}

func TestSQ8EncodeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(44))
	const n, dim = 100, 32

	q, err := NewSQ8Quantizer(distance.MetricL2, dim, nil)
	require.NoError(t, err)

	data := randMatrix(rng, n, dim)
	require.NoError(t, q.Train(data, n, dim))

	// Re-encoding any training row reproduces the stored code.
	code := make([]byte, q.CodeSize())
	for i := 0; i < n; i++ {
		q.Encode(data[i*dim:(i+1)*dim], code)
		assert.Equal(t, q.Code(i), code, "row %d", i)
	}
}

func TestSQ8ConstantDimension(t *testing.T) {
	const n, dim = 10, 4
	data := make([]float32, n*dim)
	for i := 0; i < n; i++ {
		data[i*dim] = 7 // constant dimension, zero range
		data[i*dim+1] = float32(i)
		data[i*dim+2] = -float32(i)
		data[i*dim+3] = float32(i) * 0.5
	}

	q, err := NewSQ8Quantizer(distance.MetricL2, dim, nil)
	require.NoError(t, err)
	require.NoError(t, q.Train(data, n, dim))

	out := make([]float32, dim)
	q.Decode(q.Code(3), out)
	assert.InDelta(t, 7.0, out[0], 1e-6)
}

func TestSQ4ErrorBound(t *testing.T) {
	rng := rand.New(rand.NewSource(45))
	const n, dim = 200, 65 // odd dim exercises the trailing half-byte

	q, err := NewSQ4Quantizer(distance.MetricL2, dim, nil)
	require.NoError(t, err)

	data := randMatrix(rng, n, dim)
	require.NoError(t, q.Train(data, n, dim))
	require.Equal(t, alignDim(dim)/2, q.CodeSize())

	out := make([]float32, dim)
	for i := 0; i < n; i++ {
		q.Decode(q.Code(i), out)
		for j := 0; j < dim; j++ {
			assert.LessOrEqual(t, float64(abs32(out[j]-data[i*dim+j])), float64(q.scale)+1e-6)
		}
	}
}

func TestTrainDimensionMismatch(t *testing.T) {
	for _, q := range newAllKinds(t, 16) {
		err := q.Train(make([]float32, 10*8), 10, 8)
		var dm *DimensionMismatchError
		require.ErrorAs(t, err, &dm, q.Name())
		assert.Equal(t, 16, dm.Expected)
		assert.Equal(t, 8, dm.Actual)
	}
}

func TestQueryDistanceMatchesCodeDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(46))
	const n, dim = 100, 48

	data := randMatrix(rng, n, dim)
	query := data[5*dim : 6*dim]

	for _, q := range newAllKinds(t, dim) {
		require.NoError(t, q.Train(data, n, dim))

		qcode := q.EncodeQueryTo(query, nil)
		q.EncodeQuery(query)

		for i := 0; i < n; i += 7 {
			d := q.QueryDistance(qcode, i)
			assert.Equal(t, d, q.QueryDistanceCode(qcode, q.Code(i)), q.Name())
			assert.Equal(t, d, q.QueryDistanceAt(i), q.Name())
		}

		// A vector is its own nearest neighbor in code space.
		self := q.QueryDistance(qcode, 5)
		for i := 0; i < n; i++ {
			assert.GreaterOrEqual(t, q.QueryDistance(qcode, i), self, "%s id %d", q.Name(), i)
		}
	}
}

func TestReorder(t *testing.T) {
	rng := rand.New(rand.NewSource(47))
	const n, dim, k = 60, 32, 5

	data := randMatrix(rng, n, dim)
	query := data[:dim]

	for _, q := range newAllKinds(t, dim) {
		require.NoError(t, q.Train(data, n, dim))

		p := pool.NewLinearPool(n, 20)
		qcode := q.EncodeQueryTo(query, nil)
		for i := 0; i < n; i++ {
			p.Insert(int32(i), q.QueryDistance(qcode, i))
		}

		dst := make([]int32, k)
		q.Reorder(p, query, dst, k)

		// id 0 is the query itself and must rank first after reorder.
		assert.Equal(t, int32(0), dst[0], q.Name())
		seen := map[int32]bool{}
		for _, id := range dst {
			require.GreaterOrEqual(t, id, int32(0))
			require.Less(t, id, int32(n))
			require.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
}

func TestReorderPadsWithMinusOne(t *testing.T) {
	const n, dim, k = 10, 16, 6
	rng := rand.New(rand.NewSource(48))
	data := randMatrix(rng, n, dim)

	for _, q := range newAllKinds(t, dim) {
		require.NoError(t, q.Train(data, n, dim))

		p := pool.NewLinearPool(n, 8)
		qcode := q.EncodeQueryTo(data[:dim], nil)
		p.Insert(0, q.QueryDistance(qcode, 0))
		p.Insert(1, q.QueryDistance(qcode, 1))

		dst := make([]int32, k)
		q.Reorder(p, data[:dim], dst, k)
		for i := 2; i < k; i++ {
			assert.Equal(t, int32(-1), dst[i], q.Name())
		}
	}
}

func TestPrefetchSafe(t *testing.T) {
	rng := rand.New(rand.NewSource(49))
	const n, dim = 10, 16
	data := randMatrix(rng, n, dim)

	for _, q := range newAllKinds(t, dim) {
		require.NoError(t, q.Train(data, n, dim))
		q.Prefetch(-1, 1)
		q.Prefetch(n, 1)
		q.Prefetch(0, 0)
		q.Prefetch(0, 100)
	}
}

func TestKindFromLevel(t *testing.T) {
	for level, want := range map[int]Kind{0: KindFP32, 1: KindSQ8, 2: KindSQ4} {
		kind, err := KindFromLevel(level)
		require.NoError(t, err)
		assert.Equal(t, want, kind)
	}
	_, err := KindFromLevel(3)
	assert.Error(t, err)
}

func newAllKinds(t *testing.T, dim int) []Quantizer {
	t.Helper()
	var qs []Quantizer
	for _, kind := range []Kind{KindFP32, KindSQ8, KindSQ4} {
		q, err := New(kind, distance.MetricL2, dim)
		require.NoError(t, err)
		qs = append(qs, q)
	}
	return qs
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}
