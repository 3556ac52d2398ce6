package gannet

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/graph"
	"github.com/hupe1980/gannet/hnsw"
	"github.com/hupe1980/gannet/quantization"
	"github.com/hupe1980/gannet/searcher"
)

// Level selects the quantization level of a searcher.
type Level int

const (
	// LevelFP32 searches over raw float codes.
	LevelFP32 Level = iota
	// LevelSQ8 searches over 8-bit codes and reranks with FP32.
	LevelSQ8
	// LevelSQ4 searches over 4-bit codes and reranks with FP32.
	LevelSQ4
)

// BuildOptions configures NewIndexBuilder.
type BuildOptions struct {
	// Kind selects the index algorithm. Only "HNSW" is supported.
	Kind string

	// Dim is the vector dimension.
	Dim int

	// Metric is one of "L2", "IP", "Cosine".
	Metric string

	// R is the maximum out-degree at layer 0; the nominal degree M is
	// R/2.
	R int

	// L is the construction beam width (ef_construction).
	L int

	// RandomSeed seeds the level generator.
	RandomSeed int64

	Logger    *Logger
	Collector Collector
}

// IndexBuilder builds a search graph from a base matrix.
type IndexBuilder struct {
	dim       int
	metric    distance.Metric
	builder   *hnsw.Builder
	collector Collector
}

// NewIndexBuilder creates a graph builder. Defaults: Kind "HNSW",
// Metric "L2", R 32, L 200.
func NewIndexBuilder(optFns ...func(o *BuildOptions)) (*IndexBuilder, error) {
	opts := BuildOptions{
		Kind:       "HNSW",
		Metric:     "L2",
		R:          32,
		L:          200,
		RandomSeed: hnsw.DefaultRandomSeed,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Kind != "HNSW" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndexKind, opts.Kind)
	}
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("%w: dim must be positive, got %d", ErrInvalidArgument, opts.Dim)
	}
	if opts.R <= 0 {
		return nil, fmt.Errorf("%w: R must be positive, got %d", ErrInvalidArgument, opts.R)
	}
	if opts.L < 0 {
		return nil, fmt.Errorf("%w: L must be non-negative, got %d", ErrInvalidArgument, opts.L)
	}

	metric, err := distance.ParseMetric(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.Logger
	}

	builder, err := hnsw.NewBuilder(metric, opts.Dim, func(o *hnsw.Options) {
		o.M = opts.R / 2
		o.EFConstruction = opts.L
		o.RandomSeed = opts.RandomSeed
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return &IndexBuilder{
		dim:       opts.Dim,
		metric:    metric,
		builder:   builder,
		collector: opts.Collector,
	}, nil
}

// Build indexes the n×dim row-major base matrix and returns the
// search graph.
func (b *IndexBuilder) Build(data []float32, n int) (*graph.Graph, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}
	if len(data) < n*b.dim {
		return nil, fmt.Errorf("%w: data length %d shorter than %d x %d", ErrInvalidArgument, len(data), n, b.dim)
	}

	start := time.Now()
	g, err := b.builder.Build(data, n)
	if err != nil {
		return nil, err
	}
	if b.collector != nil {
		b.collector.RecordBuild(n, time.Since(start))
	}
	return g, nil
}

// SearcherOptions configures NewSearcher.
type SearcherOptions struct {
	EF        int
	Logger    *Logger
	Collector Collector
}

// NewSearcher binds a graph to a quantizer of the given level, trains
// it on the base matrix, and returns a ready searcher. metric must be
// one of "L2", "IP", "Cosine"; level selects FP32, SQ8 or SQ4 codes.
func NewSearcher(g *graph.Graph, data []float32, n, dim int, metric string, level Level, optFns ...func(o *SearcherOptions)) (*searcher.Searcher, error) {
	opts := SearcherOptions{EF: searcher.DefaultEF}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim must be positive, got %d", ErrInvalidArgument, dim)
	}
	if n <= 0 || len(data) < n*dim {
		return nil, fmt.Errorf("%w: data shape %d x %d with length %d", ErrInvalidArgument, n, dim, len(data))
	}
	if g.NumNodes() != n {
		return nil, fmt.Errorf("%w: graph has %d nodes, data has %d rows", ErrInvalidArgument, g.NumNodes(), n)
	}

	m, err := distance.ParseMetric(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	kind, err := quantization.KindFromLevel(int(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	quant, err := quantization.New(kind, m, dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	s := searcher.New(g, quant, func(o *searcher.Options) {
		o.EF = opts.EF
		if opts.Logger != nil {
			o.Logger = opts.Logger.Logger
		}
		if opts.Collector != nil {
			o.Collector = opts.Collector
		}
	})
	if err := s.SetData(data, n, dim); err != nil {
		return nil, err
	}
	return s, nil
}

// SetNumThreads sets the process-wide default worker count used by
// batch search and optimization when a call passes threads <= 0.
func SetNumThreads(n int) {
	searcher.SetNumThreads(n)
}
