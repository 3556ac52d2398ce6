// Package searcher binds a graph and a quantizer into the build-once
// / search-many query engine.
package searcher

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gannet/graph"
	"github.com/hupe1980/gannet/internal/pool"
	"github.com/hupe1980/gannet/internal/simd"
	"github.com/hupe1980/gannet/quantization"
)

const (
	// DefaultEF is the default runtime beam width.
	DefaultEF = 32

	// optimizePoints caps the sample captured for prefetch tuning.
	optimizePoints = 1000

	// sampleSeed makes the optimization sample deterministic.
	sampleSeed = 42
)

var (
	// ErrNotTrained is returned when Search runs before SetData.
	ErrNotTrained = errors.New("searcher not trained: call SetData first")

	// ErrInvalidArgument is wrapped around argument validation
	// failures.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Collector receives operational measurements. The root package
// provides implementations; a nil collector disables recording.
type Collector interface {
	RecordTrain(d time.Duration)
	RecordOptimize(po, pl int, d time.Duration)
	RecordSearch(k int, d time.Duration, err error)
}

// Options configures a Searcher.
type Options struct {
	EF        int
	Logger    *slog.Logger
	Collector Collector
}

// Searcher runs the layered graph search over quantized codes. After
// SetData and Optimize the state is immutable: concurrent Search
// calls are safe, each carrying its own pooled search context.
type Searcher struct {
	g     *graph.Graph
	quant quantization.Quantizer

	nb  int
	dim int

	ef      int
	po      int
	pl      int
	graphPO int

	trained bool
	sample  []float32 // captured optimization queries, row-major

	logger    *slog.Logger
	collector Collector

	ctxPool sync.Pool
}

// searchContext holds the per-query scratch state.
type searchContext struct {
	pool  *pool.LinearPool
	qcode []byte
}

// New creates a searcher over the given graph and quantizer.
func New(g *graph.Graph, quant quantization.Quantizer, optFns ...func(o *Options)) *Searcher {
	opts := Options{EF: DefaultEF}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	graphPO := g.MaxDegree() / 16
	if graphPO < 1 {
		graphPO = 1
	}

	s := &Searcher{
		g:         g,
		quant:     quant,
		nb:        g.NumNodes(),
		dim:       quant.Dim(),
		ef:        opts.EF,
		po:        1,
		pl:        1,
		graphPO:   graphPO,
		logger:    opts.Logger,
		collector: opts.Collector,
	}
	s.ctxPool.New = func() any {
		return &searchContext{
			pool: pool.NewLinearPool(s.nb, s.ef),
		}
	}
	return s
}

// Graph returns the bound graph.
func (s *Searcher) Graph() *graph.Graph { return s.g }

// Quantizer returns the bound quantizer.
func (s *Searcher) Quantizer() quantization.Quantizer { return s.quant }

// SetData trains the quantizer on the base matrix and captures a
// random sample of base vectors for Optimize.
func (s *Searcher) SetData(data []float32, n, dim int) error {
	if n <= 0 || dim != s.dim {
		return fmt.Errorf("%w: data shape %d x %d (want dim %d)", ErrInvalidArgument, n, dim, s.dim)
	}

	s.logger.Info("training quantizer", "quantizer", s.quant.Name(), "n", n, "dim", dim)
	start := time.Now()
	if err := s.quant.Train(data, n, dim); err != nil {
		return err
	}
	elapsed := time.Since(start)
	s.logger.Info("quantizer trained",
		"quantizer", s.quant.Name(),
		"elapsed", elapsed,
		"kernels", simd.Describe(),
	)
	if s.collector != nil {
		s.collector.RecordTrain(elapsed)
	}

	s.captureSample(data, n, dim)
	s.nb = n
	s.trained = true
	return nil
}

// captureSample copies up to optimizePoints distinct base vectors for
// the tuning sweep.
func (s *Searcher) captureSample(data []float32, n, dim int) {
	count := optimizePoints
	if count > n-1 {
		count = n - 1
	}
	if count <= 0 {
		count = 1
	}

	picked := roaring.New()
	rng := rand.New(rand.NewSource(sampleSeed))
	for int(picked.GetCardinality()) < count {
		picked.Add(uint32(rng.Intn(n)))
	}

	s.sample = make([]float32, 0, count*dim)
	it := picked.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		s.sample = append(s.sample, data[i*dim:(i+1)*dim]...)
	}
}

// SetEf sets the runtime beam width.
func (s *Searcher) SetEf(ef int) error {
	if ef <= 0 {
		return fmt.Errorf("%w: ef must be positive, got %d", ErrInvalidArgument, ef)
	}
	s.ef = ef
	return nil
}

// EF returns the runtime beam width.
func (s *Searcher) EF() int { return s.ef }

// SetPrefetch overrides the tuned prefetch parameters.
func (s *Searcher) SetPrefetch(po, pl int) {
	s.po = po
	s.pl = pl
}

// Stats describes the runtime parameters.
type Stats struct {
	EF int
	PO int
	PL int
	N  int
}

// Stats returns the current runtime parameters.
func (s *Searcher) Stats() Stats {
	return Stats{EF: s.ef, PO: s.po, PL: s.pl, N: s.nb}
}

// Search returns the ids of the k nearest base vectors to q.
func (s *Searcher) Search(q []float32, k int) ([]int32, error) {
	dst := make([]int32, k)
	if err := s.SearchInto(q, k, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// SearchInto writes the ids of the k nearest base vectors to q into
// dst[:k]. Unfilled positions are set to −1.
func (s *Searcher) SearchInto(q []float32, k int, dst []int32) error {
	start := time.Now()
	err := s.searchInto(q, k, dst)
	if s.collector != nil {
		s.collector.RecordSearch(k, time.Since(start), err)
	}
	return err
}

func (s *Searcher) searchInto(q []float32, k int, dst []int32) error {
	if !s.trained {
		return ErrNotTrained
	}
	if k < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidArgument, k)
	}
	if len(q) != s.dim {
		return fmt.Errorf("%w: query dim %d != %d", ErrInvalidArgument, len(q), s.dim)
	}
	if len(dst) < k {
		return fmt.Errorf("%w: dst length %d < k %d", ErrInvalidArgument, len(dst), k)
	}

	ctx := s.ctxPool.Get().(*searchContext)
	defer s.ctxPool.Put(ctx)

	ctx.qcode = s.quant.EncodeQueryTo(q, ctx.qcode)

	capacity := k
	if s.ef > capacity {
		capacity = s.ef
	}
	ctx.pool.Reset(s.nb, capacity)

	s.g.InitializeSearch(ctx.pool, func(id int32) float32 {
		return s.quant.QueryDistance(ctx.qcode, int(id))
	})
	s.searchImpl(ctx)

	s.quant.Reorder(ctx.pool, q, dst, k)
	return nil
}

// searchImpl drains the candidate pool: pop the closest unexplored
// node, prefetch its row and upcoming codes, and try to insert each
// unvisited neighbor.
func (s *Searcher) searchImpl(ctx *searchContext) {
	p := ctx.pool
	r := s.g.MaxDegree()

	for p.HasNext() {
		u := p.Pop()
		s.g.PrefetchNeighbors(u, s.graphPO)
		nbrs := s.g.Neighbors(u)

		for i := 0; i < s.po && i < r; i++ {
			if to := nbrs[i]; to != graph.EmptyID {
				s.quant.Prefetch(int(to), s.pl)
			}
		}

		for i := 0; i < r; i++ {
			v := nbrs[i]
			if v == graph.EmptyID {
				break
			}
			if i+s.po < r && nbrs[i+s.po] != graph.EmptyID {
				s.quant.Prefetch(int(nbrs[i+s.po]), s.pl)
			}
			if p.Vis.Get(v) {
				continue
			}
			p.Vis.Set(v)
			p.Insert(v, s.quant.QueryDistance(ctx.qcode, int(v)))
		}
	}
}
