package quantization

import (
	"math"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/internal/mem"
	"github.com/hupe1980/gannet/internal/pool"
	"github.com/hupe1980/gannet/internal/simd"
)

// SQ4Quantizer maps each dimension to 4 bits using a single global
// (min, max) over the whole matrix, packing two lanes per byte: lane
// 2i in the low nibble, lane 2i+1 in the high nibble.
type SQ4Quantizer struct {
	metric distance.Metric
	dist   distance.U4Func

	dim    int
	dAlign int
	n      int

	scale  float32
	offset float32
	codes  []byte

	reorder *FP32Quantizer
	query   []byte
}

// NewSQ4Quantizer creates a 4-bit scalar quantizer. reorder may be
// nil to disable exact reranking.
func NewSQ4Quantizer(metric distance.Metric, dim int, reorder *FP32Quantizer) (*SQ4Quantizer, error) {
	dist, err := distance.ForU4(metric)
	if err != nil {
		return nil, err
	}
	dAlign := alignDim(dim)
	return &SQ4Quantizer{
		metric:  metric,
		dist:    dist,
		dim:     dim,
		dAlign:  dAlign,
		reorder: reorder,
		query:   mem.AllocAligned(dAlign / 2),
	}, nil
}

// Train computes the global (min, max) over the data and encodes
// every row.
func (q *SQ4Quantizer) Train(data []float32, n, dim int) error {
	if dim != q.dim {
		return &DimensionMismatchError{Expected: q.dim, Actual: dim}
	}

	minVal := float32(math.MaxFloat32)
	maxVal := float32(-math.MaxFloat32)
	for i := 0; i < n*dim; i++ {
		v := data[i]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	q.offset = minVal
	q.scale = (maxVal - minVal) / 15
	if q.scale == 0 {
		q.scale = 1
	}

	q.n = n
	q.codes = mem.AllocCodes(n * q.dAlign / 2)
	for i := 0; i < n; i++ {
		q.Encode(data[i*dim:(i+1)*dim], q.Code(i))
	}

	if q.reorder != nil {
		return q.reorder.Train(data, n, dim)
	}
	return nil
}

func (q *SQ4Quantizer) N() int        { return q.n }
func (q *SQ4Quantizer) Dim() int      { return q.dim }
func (q *SQ4Quantizer) CodeSize() int { return q.dAlign / 2 }
func (q *SQ4Quantizer) Kind() Kind    { return KindSQ4 }
func (q *SQ4Quantizer) Name() string  { return "SQ4Quantizer" }

// Code returns the code of vector i.
func (q *SQ4Quantizer) Code(i int) []byte {
	stride := q.dAlign / 2
	return q.codes[i*stride : (i+1)*stride]
}

// Encode quantizes v into code. Lanes beyond dim stay zero.
func (q *SQ4Quantizer) Encode(v []float32, code []byte) {
	for i := range code {
		code[i] = 0
	}
	for j := 0; j < q.dim; j++ {
		norm := (v[j] - q.offset) / q.scale
		if norm < 0 {
			norm = 0
		} else if norm > 15 {
			norm = 15
		}
		lane := byte(norm + 0.5)
		if j&1 == 0 {
			code[j/2] |= lane
		} else {
			code[j/2] |= lane << 4
		}
	}
}

// Decode reconstructs the float vector from a code.
func (q *SQ4Quantizer) Decode(code []byte, out []float32) {
	for j := 0; j < q.dim; j++ {
		var lane byte
		if j&1 == 0 {
			lane = code[j/2] & 0x0F
		} else {
			lane = code[j/2] >> 4
		}
		out[j] = float32(lane)*q.scale + q.offset
	}
}

// EncodeQueryTo encodes q into buf using the trained parameters.
func (q *SQ4Quantizer) EncodeQueryTo(query []float32, buf []byte) []byte {
	size := q.dAlign / 2
	if cap(buf) < size {
		buf = mem.AllocAligned(size)
	}
	buf = buf[:size]
	q.Encode(query[:q.dim], buf)
	return buf
}

// EncodeQuery encodes into the internal buffer.
func (q *SQ4Quantizer) EncodeQuery(query []float32) {
	q.Encode(query[:q.dim], q.query)
}

// QueryDistance computes the code-space distance between an encoded
// query and vector i.
func (q *SQ4Quantizer) QueryDistance(qcode []byte, i int) float32 {
	return q.dist(qcode, q.Code(i), q.dAlign)
}

// QueryDistanceCode computes the code-space distance between an
// encoded query and an arbitrary code.
func (q *SQ4Quantizer) QueryDistanceCode(qcode, code []byte) float32 {
	return q.dist(qcode, code, q.dAlign)
}

// QueryDistanceAt computes the distance against the internal query
// buffer.
func (q *SQ4Quantizer) QueryDistanceAt(i int) float32 {
	return q.dist(q.query, q.Code(i), q.dAlign)
}

// Reorder reranks every pool entry with exact float distances when a
// companion is configured, then writes the top k ids.
func (q *SQ4Quantizer) Reorder(p *pool.LinearPool, query []float32, dst []int32, k int) {
	reorderPool(q.reorder, p, query, dst, k)
}

// Prefetch hints the code of vector i into cache.
func (q *SQ4Quantizer) Prefetch(i, lines int) {
	if i < 0 || i >= q.n {
		return
	}
	simd.Prefetch(q.Code(i), lines)
}
