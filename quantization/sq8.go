package quantization

import (
	"math"
	"slices"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/internal/mem"
	"github.com/hupe1980/gannet/internal/pool"
	"github.com/hupe1980/gannet/internal/simd"
)

// SQ8Quantizer maps each dimension to u8 with per-dimension affine
// parameters: code = round((v − offset[j]) / scale[j]) clamped to
// [0, 255]. Distances are computed directly in code space; when a
// companion FP32 quantizer is configured, Reorder reranks the pool
// with exact float distances.
type SQ8Quantizer struct {
	metric distance.Metric
	dist   distance.U8Func

	dim    int
	dAlign int
	n      int

	scale  []float32
	offset []float32
	codes  []byte

	reorder *FP32Quantizer
	query   []byte
}

// NewSQ8Quantizer creates an 8-bit scalar quantizer. reorder may be
// nil to disable exact reranking.
func NewSQ8Quantizer(metric distance.Metric, dim int, reorder *FP32Quantizer) (*SQ8Quantizer, error) {
	dist, err := distance.ForU8(metric)
	if err != nil {
		return nil, err
	}
	dAlign := alignDim(dim)
	return &SQ8Quantizer{
		metric:  metric,
		dist:    dist,
		dim:     dim,
		dAlign:  dAlign,
		scale:   make([]float32, dAlign),
		offset:  make([]float32, dAlign),
		reorder: reorder,
		query:   mem.AllocAligned(dAlign),
	}, nil
}

// Train computes per-dimension (min, max) over the data and encodes
// every row. Padding dimensions get offset 0 and scale 1 so they
// encode to zero.
func (q *SQ8Quantizer) Train(data []float32, n, dim int) error {
	if dim != q.dim {
		return &DimensionMismatchError{Expected: q.dim, Actual: dim}
	}

	minVals := make([]float32, dim)
	maxVals := make([]float32, dim)
	for j := 0; j < dim; j++ {
		minVals[j] = math.MaxFloat32
		maxVals[j] = -math.MaxFloat32
	}
	for i := 0; i < n; i++ {
		row := data[i*dim : (i+1)*dim]
		for j, v := range row {
			if v < minVals[j] {
				minVals[j] = v
			}
			if v > maxVals[j] {
				maxVals[j] = v
			}
		}
	}

	for j := 0; j < dim; j++ {
		q.offset[j] = minVals[j]
		q.scale[j] = (maxVals[j] - minVals[j]) / 255
		if q.scale[j] == 0 {
			q.scale[j] = 1
		}
	}
	for j := dim; j < q.dAlign; j++ {
		q.offset[j] = 0
		q.scale[j] = 1
	}

	q.n = n
	q.codes = mem.AllocCodes(n * q.dAlign)
	for i := 0; i < n; i++ {
		q.Encode(data[i*dim:(i+1)*dim], q.Code(i))
	}

	if q.reorder != nil {
		return q.reorder.Train(data, n, dim)
	}
	return nil
}

func (q *SQ8Quantizer) N() int        { return q.n }
func (q *SQ8Quantizer) Dim() int      { return q.dim }
func (q *SQ8Quantizer) CodeSize() int { return q.dAlign }
func (q *SQ8Quantizer) Kind() Kind    { return KindSQ8 }
func (q *SQ8Quantizer) Name() string  { return "SQ8Quantizer" }

// Code returns the code of vector i.
func (q *SQ8Quantizer) Code(i int) []byte {
	return q.codes[i*q.dAlign : (i+1)*q.dAlign]
}

// Encode quantizes v into code.
func (q *SQ8Quantizer) Encode(v []float32, code []byte) {
	for j := 0; j < q.dim; j++ {
		norm := (v[j] - q.offset[j]) / q.scale[j]
		if norm < 0 {
			norm = 0
		} else if norm > 255 {
			norm = 255
		}
		code[j] = byte(norm + 0.5)
	}
	for j := q.dim; j < q.dAlign; j++ {
		code[j] = 0
	}
}

// Decode reconstructs the float vector from a code.
func (q *SQ8Quantizer) Decode(code []byte, out []float32) {
	for j := 0; j < q.dim; j++ {
		out[j] = float32(code[j])*q.scale[j] + q.offset[j]
	}
}

// EncodeQueryTo encodes q into buf using the trained parameters.
func (q *SQ8Quantizer) EncodeQueryTo(query []float32, buf []byte) []byte {
	if cap(buf) < q.dAlign {
		buf = mem.AllocAligned(q.dAlign)
	}
	buf = buf[:q.dAlign]
	q.Encode(query[:q.dim], buf)
	return buf
}

// EncodeQuery encodes into the internal buffer.
func (q *SQ8Quantizer) EncodeQuery(query []float32) {
	q.Encode(query[:q.dim], q.query)
}

// QueryDistance computes the code-space distance between an encoded
// query and vector i. For IP this is 1−⟨q̂, x̂⟩ in integer code space,
// an approximation with error O(max(scale)·dim).
func (q *SQ8Quantizer) QueryDistance(qcode []byte, i int) float32 {
	return q.dist(qcode, q.Code(i))
}

// QueryDistanceCode computes the code-space distance between an
// encoded query and an arbitrary code.
func (q *SQ8Quantizer) QueryDistanceCode(qcode, code []byte) float32 {
	return q.dist(qcode, code)
}

// QueryDistanceAt computes the distance against the internal query
// buffer.
func (q *SQ8Quantizer) QueryDistanceAt(i int) float32 {
	return q.dist(q.query, q.Code(i))
}

// Reorder reranks every pool entry with exact float distances when a
// companion is configured, then writes the top k ids. Without a
// companion the pool order is taken as-is.
func (q *SQ8Quantizer) Reorder(p *pool.LinearPool, query []float32, dst []int32, k int) {
	reorderPool(q.reorder, p, query, dst, k)
}

// Prefetch hints the code of vector i into cache.
func (q *SQ8Quantizer) Prefetch(i, lines int) {
	if i < 0 || i >= q.n {
		return
	}
	simd.Prefetch(q.Code(i), lines)
}

type rankedID struct {
	id   int32
	dist float32
}

// reorderPool implements the shared rerank-or-copy logic for the
// quantized variants.
func reorderPool(exact *FP32Quantizer, p *pool.LinearPool, query []float32, dst []int32, k int) {
	if exact == nil {
		for i := 0; i < k; i++ {
			if i < p.Size() {
				dst[i] = p.ID(i)
			} else {
				dst[i] = -1
			}
		}
		return
	}

	ranked := make([]rankedID, 0, p.Size())
	for i := 0; i < p.Size(); i++ {
		id := p.ID(i)
		ranked = append(ranked, rankedID{
			id:   id,
			dist: exact.QueryDistanceRaw(query, int(id)),
		})
	}
	slices.SortFunc(ranked, func(a, b rankedID) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return 0
		}
	})

	for i := 0; i < k; i++ {
		if i < len(ranked) {
			dst[i] = ranked[i].id
		} else {
			dst[i] = -1
		}
	}
}
