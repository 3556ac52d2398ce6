package quantization

import (
	"unsafe"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/internal/mem"
	"github.com/hupe1980/gannet/internal/pool"
	"github.com/hupe1980/gannet/internal/simd"
)

// FP32Quantizer is the identity quantizer: vectors are stored as raw
// float32 rows, padded with zeros to the aligned dimension. It doubles
// as the high-precision companion for SQ8/SQ4 reordering.
type FP32Quantizer struct {
	metric distance.Metric
	dist   distance.Func

	dim    int
	dAlign int
	n      int

	codes []byte    // 2 MiB-aligned backing block
	rows  []float32 // codes viewed as floats, n*dAlign

	query []float32 // internal query buffer for the convenience path
}

// NewFP32Quantizer creates an identity quantizer for the given metric
// and dimension.
func NewFP32Quantizer(metric distance.Metric, dim int) (*FP32Quantizer, error) {
	// Cosine inputs are normalized at train/encode time, so the
	// unit-norm fast path (1−⟨a,b⟩) applies.
	dist, err := distance.UnitNormFunc(metric)
	if err != nil {
		return nil, err
	}
	return &FP32Quantizer{
		metric: metric,
		dist:   dist,
		dim:    dim,
		dAlign: alignDim(dim),
		query:  mem.AllocAlignedFloat32(alignDim(dim)),
	}, nil
}

// Train copies every row into the aligned code block.
func (q *FP32Quantizer) Train(data []float32, n, dim int) error {
	if dim != q.dim {
		return &DimensionMismatchError{Expected: q.dim, Actual: dim}
	}

	q.n = n
	q.codes = mem.AllocCodes(n * q.dAlign * 4)
	q.rows = unsafe.Slice((*float32)(unsafe.Pointer(&q.codes[0])), n*q.dAlign) //nolint:gosec // typed view of the aligned block

	for i := 0; i < n; i++ {
		row := q.rows[i*q.dAlign : i*q.dAlign+q.dAlign]
		copy(row, data[i*dim:(i+1)*dim])
		for j := dim; j < q.dAlign; j++ {
			row[j] = 0
		}
		if q.metric == distance.MetricCosine {
			distance.NormalizeL2InPlace(row[:dim])
		}
	}
	return nil
}

func (q *FP32Quantizer) N() int          { return q.n }
func (q *FP32Quantizer) Dim() int        { return q.dim }
func (q *FP32Quantizer) CodeSize() int   { return q.dAlign * 4 }
func (q *FP32Quantizer) Kind() Kind      { return KindFP32 }
func (q *FP32Quantizer) Name() string    { return "FP32Quantizer" }

// Code returns the raw byte view of row i.
func (q *FP32Quantizer) Code(i int) []byte {
	stride := q.CodeSize()
	return q.codes[i*stride : (i+1)*stride]
}

// Row returns the float view of row i.
func (q *FP32Quantizer) Row(i int) []float32 {
	return q.rows[i*q.dAlign : (i+1)*q.dAlign]
}

// Decode copies the first dim floats out of a code.
func (q *FP32Quantizer) Decode(code []byte, out []float32) {
	f := unsafe.Slice((*float32)(unsafe.Pointer(&code[0])), q.dAlign) //nolint:gosec // typed view
	copy(out, f[:q.dim])
}

// EncodeQueryTo writes the padded (and for cosine, normalized) query
// into buf.
func (q *FP32Quantizer) EncodeQueryTo(query []float32, buf []byte) []byte {
	size := q.CodeSize()
	if cap(buf) < size {
		buf = mem.AllocAligned(size)
	}
	buf = buf[:size]
	f := unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), q.dAlign) //nolint:gosec // typed view
	copy(f, query[:q.dim])
	for j := q.dim; j < q.dAlign; j++ {
		f[j] = 0
	}
	if q.metric == distance.MetricCosine {
		distance.NormalizeL2InPlace(f[:q.dim])
	}
	return buf
}

// EncodeQuery encodes into the internal buffer.
func (q *FP32Quantizer) EncodeQuery(query []float32) {
	copy(q.query, query[:q.dim])
	for j := q.dim; j < q.dAlign; j++ {
		q.query[j] = 0
	}
	if q.metric == distance.MetricCosine {
		distance.NormalizeL2InPlace(q.query[:q.dim])
	}
}

// QueryDistance computes the distance between an encoded query and
// row i.
func (q *FP32Quantizer) QueryDistance(qcode []byte, i int) float32 {
	f := unsafe.Slice((*float32)(unsafe.Pointer(&qcode[0])), q.dAlign) //nolint:gosec // typed view
	return q.dist(f, q.Row(i))
}

// QueryDistanceCode computes the distance between an encoded query
// and an arbitrary code.
func (q *FP32Quantizer) QueryDistanceCode(qcode, code []byte) float32 {
	qf := unsafe.Slice((*float32)(unsafe.Pointer(&qcode[0])), q.dAlign)  //nolint:gosec // typed view
	cf := unsafe.Slice((*float32)(unsafe.Pointer(&code[0])), q.dAlign)   //nolint:gosec // typed view
	return q.dist(qf, cf)
}

// QueryDistanceAt computes the distance between the internal query
// buffer and row i.
func (q *FP32Quantizer) QueryDistanceAt(i int) float32 {
	return q.dist(q.query, q.Row(i))
}

// QueryDistanceRaw computes the exact distance between a raw float
// query and row i, used for reranking.
func (q *FP32Quantizer) QueryDistanceRaw(query []float32, i int) float32 {
	row := q.Row(i)
	return q.dist(query[:q.dim], row[:q.dim])
}

// Reorder copies the first k pool ids in pool order; no reranking is
// needed since the pool distances are already exact.
func (q *FP32Quantizer) Reorder(p *pool.LinearPool, _ []float32, dst []int32, k int) {
	for i := 0; i < k; i++ {
		if i < p.Size() {
			dst[i] = p.ID(i)
		} else {
			dst[i] = -1
		}
	}
}

// Prefetch hints row i into cache.
func (q *FP32Quantizer) Prefetch(i, lines int) {
	if i < 0 || i >= q.n {
		return
	}
	simd.Prefetch(q.Code(i), lines)
}
