// Package quantization provides the vector quantizers backing the
// search hot path: FP32 (identity), SQ8 (per-dimension affine to u8)
// and SQ4 (global affine to packed u4).
//
// A quantizer owns the encoded base vectors (the code block) and
// computes distances between an encoded query and stored codes. Codes
// are padded to an aligned dimension so the kernels can run full-width
// without tail branches on the data side.
package quantization

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gannet/internal/pool"
)

// Kind identifies a quantizer variant.
type Kind int

const (
	// KindFP32 stores vectors unmodified.
	KindFP32 Kind = iota
	// KindSQ8 quantizes each dimension to 8 bits with per-dimension
	// affine parameters.
	KindSQ8
	// KindSQ4 quantizes each dimension to 4 bits with global affine
	// parameters, packing two lanes per byte.
	KindSQ4
)

func (k Kind) String() string {
	switch k {
	case KindFP32:
		return "FP32"
	case KindSQ8:
		return "SQ8"
	case KindSQ4:
		return "SQ4"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// KindFromLevel maps the public API level selector to a Kind:
// 0 = FP32, 1 = SQ8, 2 = SQ4.
func KindFromLevel(level int) (Kind, error) {
	switch level {
	case 0:
		return KindFP32, nil
	case 1:
		return KindSQ8, nil
	case 2:
		return KindSQ4, nil
	default:
		return 0, fmt.Errorf("unknown quantizer level: %d", level)
	}
}

// ErrNotTrained names the untrained-quantizer condition. The quantizers
// in this package do not return it: Code and the distance methods
// index the code block directly, which is empty before Train.
var ErrNotTrained = errors.New("quantizer not trained")

// DimensionMismatchError indicates input dimensionality that differs
// from the configured dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Quantizer is the contract shared by all variants.
//
// The encoded query is caller-owned: EncodeQueryTo writes into (or
// reallocates) the provided buffer and QueryDistance takes it back,
// so concurrent searches each carry their own buffer. EncodeQuery /
// QueryDistanceAt are single-goroutine conveniences over an internal
// buffer.
type Quantizer interface {
	// Train fits the quantizer on n×dim row-major data and encodes
	// every row into the code block.
	Train(data []float32, n, dim int) error

	// N returns the number of encoded vectors.
	N() int

	// Dim returns the configured dimension.
	Dim() int

	// CodeSize returns the per-vector code stride in bytes.
	CodeSize() int

	// Kind returns the variant tag.
	Kind() Kind

	// Name returns the variant name for metadata and logs.
	Name() string

	// Code returns the stored code of vector i. The slice borrows
	// from the code block and must not be modified.
	Code(i int) []byte

	// Decode reconstructs a float vector from a code.
	Decode(code []byte, out []float32)

	// EncodeQueryTo encodes q into buf (grown as needed) and returns
	// the encoded query.
	EncodeQueryTo(q []float32, buf []byte) []byte

	// EncodeQuery encodes q into the internal query buffer.
	EncodeQuery(q []float32)

	// QueryDistance returns the distance between an encoded query and
	// the code of vector i.
	QueryDistance(qcode []byte, i int) float32

	// QueryDistanceCode returns the distance between an encoded query
	// and an arbitrary code.
	QueryDistanceCode(qcode, code []byte) float32

	// QueryDistanceAt is QueryDistance against the internal query
	// buffer.
	QueryDistanceAt(i int) float32

	// Reorder writes the final top-k ids for the query into dst,
	// reranking with a higher-precision companion when configured.
	// Unfilled positions are set to −1.
	Reorder(p *pool.LinearPool, q []float32, dst []int32, k int)

	// Prefetch hints the code of vector i into cache, up to lines
	// cache lines. Safe for out-of-range i and lines <= 0.
	Prefetch(i, lines int)
}

// codeAlign is the lane alignment of the padded dimension.
const codeAlign = 16

func alignDim(dim int) int {
	return (dim + codeAlign - 1) &^ (codeAlign - 1)
}
