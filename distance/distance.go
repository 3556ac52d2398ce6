// Package distance provides metric-aware distance computation over
// float vectors and quantized codes.
//
// Every function returns a distance: smaller is better for all
// metrics. Inner product is surfaced as 1−⟨a,b⟩ and cosine as
// 1−cos(a,b) so the candidate pool can order all metrics uniformly.
package distance

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hupe1980/gannet/internal/simd"
)

// Metric identifies the distance metric.
type Metric int

const (
	// MetricL2 is squared euclidean distance.
	MetricL2 Metric = iota
	// MetricIP is inner product, returned as 1−⟨a,b⟩.
	MetricIP
	// MetricCosine is cosine distance, 1−cos(a,b).
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricIP:
		return "IP"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseMetric parses the metric names accepted by the public API.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "L2":
		return MetricL2, nil
	case "IP":
		return MetricIP, nil
	case "Cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Func computes a distance between two float32 vectors of equal
// length.
type Func func(a, b []float32) float32

// U8Func computes a distance between two u8 code vectors of equal
// length.
type U8Func func(a, b []byte) float32

// U4Func computes a distance between two packed u4 code vectors; dim
// is the logical lane count.
type U4Func func(a, b []byte, dim int) float32

// FloatFunc returns the float32 distance function for the metric.
func FloatFunc(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return simd.SquaredL2, nil
	case MetricIP:
		return ipDistance, nil
	case MetricCosine:
		return cosineDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric for float32: %v", m)
	}
}

// UnitNormFunc is like FloatFunc but assumes unit-norm inputs, so
// cosine reduces to 1−⟨a,b⟩.
func UnitNormFunc(m Metric) (Func, error) {
	if m == MetricCosine {
		return ipDistance, nil
	}
	return FloatFunc(m)
}

// ForU8 returns the distance function over u8 codes. The IP and
// cosine paths operate in integer code space without dequantizing.
func ForU8(m Metric) (U8Func, error) {
	switch m {
	case MetricL2:
		return simd.SquaredL2U8, nil
	case MetricIP:
		return ipU8Distance, nil
	case MetricCosine:
		warnScalarCodes("SQ8")
		return cosineU8Distance, nil
	default:
		return nil, fmt.Errorf("unsupported metric for u8 codes: %v", m)
	}
}

// ForU4 returns the distance function over packed u4 codes.
func ForU4(m Metric) (U4Func, error) {
	switch m {
	case MetricL2:
		return simd.SquaredL2U4, nil
	case MetricIP:
		warnScalarCodes("SQ4")
		return ipU4Distance, nil
	case MetricCosine:
		warnScalarCodes("SQ4")
		return cosineU4Distance, nil
	default:
		return nil, fmt.Errorf("unsupported metric for u4 codes: %v", m)
	}
}

func ipDistance(a, b []float32) float32 {
	return 1 - simd.Dot(a, b)
}

func cosineDistance(a, b []float32) float32 {
	denom := simd.Sqrt(simd.Dot(a, a) * simd.Dot(b, b))
	if denom == 0 {
		return 1
	}
	return 1 - simd.Dot(a, b)/denom
}

func ipU8Distance(a, b []byte) float32 {
	return 1 - simd.DotU8(a, b)
}

func cosineU8Distance(a, b []byte) float32 {
	denom := simd.Sqrt(simd.DotU8(a, a) * simd.DotU8(b, b))
	if denom == 0 {
		return 1
	}
	return 1 - simd.DotU8(a, b)/denom
}

func ipU4Distance(a, b []byte, dim int) float32 {
	return 1 - simd.DotU4(a, b, dim)
}

func cosineU4Distance(a, b []byte, dim int) float32 {
	denom := simd.Sqrt(simd.DotU4(a, a, dim) * simd.DotU4(b, b, dim))
	if denom == 0 {
		return 1
	}
	return 1 - simd.DotU4(a, b, dim)/denom
}

var warnOnce sync.Once

// Similarity metrics on narrow integer codes are computed from the
// same ISA-dispatched code dot-product kernels as the rest of the
// code path; there is no separate scalar fallback. The first use logs
// a one-time warning. Documented behavior, not an error.
func warnScalarCodes(kind string) {
	warnOnce.Do(func() {
		slog.Warn("similarity metric on quantized codes is approximated in code space", "codes", kind)
	})
}

// NormalizeL2InPlace L2-normalizes v in place. Returns false if v has
// zero norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := simd.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / simd.Sqrt(norm2)
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src. Returns false if
// src has zero norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}
