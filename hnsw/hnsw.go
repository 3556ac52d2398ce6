// Package hnsw builds the layered proximity graph consumed by the
// searcher: classical HNSW insertion with heuristic neighbor
// selection, followed by extraction of the level-0 adjacency into a
// dense graph and the upper layers into a layer initializer.
package hnsw

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/time/rate"

	"github.com/hupe1980/gannet/distance"
	"github.com/hupe1980/gannet/graph"
)

const (
	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 16

	// DefaultEFConstruction is the default beam width during
	// insertion.
	DefaultEFConstruction = 200

	// DefaultRandomSeed seeds the level generator.
	DefaultRandomSeed = 100
)

// Options configures the builder.
type Options struct {
	M              int
	EFConstruction int
	RandomSeed     int64
	Logger         *slog.Logger
}

// Builder constructs an HNSW graph from a base matrix. Insertion is
// serial: the resulting graph is deterministic given (data, options).
type Builder struct {
	metric distance.Metric
	dist   distance.Func
	dim    int

	m         int
	maxM0     int
	efCon     int
	levelMult float64
	rng       *rand.Rand
	logger    *slog.Logger

	// build state
	data    []float32
	n       int
	levels  []int32
	layers  [][][]int32 // layers[u][l] = neighbor ids of u at layer l
	ep      int32
	epLevel int
	visited *bitset.BitSet
}

// NewBuilder creates an HNSW builder for the given metric and
// dimension.
func NewBuilder(metric distance.Metric, dim int, optFns ...func(o *Options)) (*Builder, error) {
	opts := Options{
		M:              DefaultM,
		EFConstruction: DefaultEFConstruction,
		RandomSeed:     DefaultRandomSeed,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dim)
	}
	if opts.M <= 0 {
		return nil, fmt.Errorf("invalid M: %d", opts.M)
	}
	if opts.EFConstruction < 0 {
		return nil, fmt.Errorf("invalid ef_construction: %d", opts.EFConstruction)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Cosine data is normalized before insertion, so the unit-norm
	// fast path applies.
	dist, err := distance.UnitNormFunc(metric)
	if err != nil {
		return nil, err
	}

	// A zero beam width degenerates to pure greedy insertion; the
	// search loop needs at least one result slot.
	if opts.EFConstruction < 1 {
		opts.EFConstruction = 1
	}

	return &Builder{
		metric:    metric,
		dist:      dist,
		dim:       dim,
		m:         opts.M,
		maxM0:     2 * opts.M,
		efCon:     opts.EFConstruction,
		levelMult: 1 / math.Log(float64(opts.M)),
		rng:       rand.New(rand.NewSource(opts.RandomSeed)),
		logger:    opts.Logger,
	}, nil
}

// M returns the configured nominal degree.
func (b *Builder) M() int { return b.m }

// Dim returns the configured dimension.
func (b *Builder) Dim() int { return b.dim }

// Name identifies the builder in graph metadata.
func (b *Builder) Name() string { return "HNSWBuilder" }

// Build inserts the n×dim row-major base matrix and returns the
// extracted search graph.
func (b *Builder) Build(data []float32, n int) (*graph.Graph, error) {
	if n <= 0 {
		return nil, fmt.Errorf("no points to index: n=%d", n)
	}
	if len(data) < n*b.dim {
		return nil, fmt.Errorf("data length %d shorter than %d x %d", len(data), n, b.dim)
	}

	b.n = n
	b.data = data
	if b.metric == distance.MetricCosine {
		normalized := make([]float32, n*b.dim)
		copy(normalized, data[:n*b.dim])
		for i := 0; i < n; i++ {
			distance.NormalizeL2InPlace(normalized[i*b.dim : (i+1)*b.dim])
		}
		b.data = normalized
	}

	b.levels = make([]int32, n)
	b.layers = make([][][]int32, n)
	b.visited = bitset.New(uint(n))
	b.ep = 0
	b.epLevel = 0

	start := time.Now()
	progress := rate.NewLimiter(rate.Every(time.Second), 1)
	for i := 0; i < n; i++ {
		b.insert(int32(i))
		if progress.Allow() {
			b.logger.Info("hnsw build progress", "inserted", i+1, "total", n)
		}
	}
	b.logger.Info("hnsw build completed",
		"nodes", n,
		"max_level", b.epLevel,
		"elapsed", time.Since(start),
	)

	return b.extract(), nil
}

// BuildContext is Build with a cancellation check before the build
// starts. Once insertion has begun, ctx is not consulted again.
func (b *Builder) BuildContext(ctx context.Context, data []float32, n int) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Build(data, n)
}

// vec returns the (possibly normalized) vector of node u.
func (b *Builder) vec(u int32) []float32 {
	return b.data[int(u)*b.dim : (int(u)+1)*b.dim]
}

func (b *Builder) distNodes(u, v int32) float32 {
	return b.dist(b.vec(u), b.vec(v))
}

// randomLevel draws ⌊−ln(U(0,1))·(1/ln(M))⌋.
func (b *Builder) randomLevel() int {
	u := b.rng.Float64()
	for u == 0 {
		u = b.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * b.levelMult))
}

func (b *Builder) maxDegree(layer int) int {
	if layer == 0 {
		return b.maxM0
	}
	return b.m
}

func (b *Builder) neighborsAt(layer int, u int32) []int32 {
	return b.layers[u][layer]
}

func (b *Builder) insert(u int32) {
	level := b.randomLevel()
	b.levels[u] = int32(level)
	b.layers[u] = make([][]int32, level+1)
	for l := 0; l <= level; l++ {
		b.layers[u][l] = make([]int32, 0, b.maxDegree(l))
	}

	if u == 0 {
		b.epLevel = level
		b.ep = 0
		return
	}

	q := b.vec(u)
	curr := b.ep
	currDist := b.dist(q, b.vec(curr))

	// Greedy descent through the layers above the new point's level.
	for l := b.epLevel; l > level; l-- {
		changed := true
		for changed {
			changed = false
			for _, v := range b.neighborsAt(l, curr) {
				if d := b.dist(q, b.vec(v)); d < currDist {
					currDist = d
					curr = v
					changed = true
				}
			}
		}
	}

	// Beam search and linking from the top shared layer down to 0.
	top := min(level, b.epLevel)
	for l := top; l >= 0; l-- {
		cands := b.searchLayer(q, curr, currDist, l, b.efCon)
		selected := b.selectNeighbors(q, cands, b.m)
		for _, s := range selected {
			b.link(l, u, s.id)
			b.link(l, s.id, u)
		}
		if len(cands) > 0 {
			curr = cands[0].id
			currDist = cands[0].dist
		}
	}

	if level > b.epLevel {
		b.ep = u
		b.epLevel = level
	}
}

// searchLayer runs a beam search of width ef at the given layer,
// returning up to ef candidates sorted by ascending distance.
func (b *Builder) searchLayer(q []float32, ep int32, epDist float32, layer, ef int) []candidate {
	b.visited.ClearAll()
	b.visited.Set(uint(ep))

	frontier := newCandidateQueue(ef, false)
	results := newCandidateQueue(ef+1, true)
	frontier.Push(candidate{id: ep, dist: epDist})
	results.Push(candidate{id: ep, dist: epDist})

	for frontier.Len() > 0 {
		c := frontier.Pop()
		if results.Len() >= ef && c.dist > results.Top().dist {
			break
		}
		for _, v := range b.neighborsAt(layer, c.id) {
			if b.visited.Test(uint(v)) {
				continue
			}
			b.visited.Set(uint(v))
			d := b.dist(q, b.vec(v))
			if results.Len() < ef || d < results.Top().dist {
				frontier.Push(candidate{id: v, dist: d})
				results.Push(candidate{id: v, dist: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	out := make([]candidate, len(results.items))
	copy(out, results.items)
	slices.SortFunc(out, func(a, c candidate) int {
		switch {
		case a.dist < c.dist:
			return -1
		case a.dist > c.dist:
			return 1
		default:
			return int(a.id - c.id)
		}
	})
	return out
}

// selectNeighbors applies the HNSW heuristic to candidates sorted by
// ascending distance: a candidate is kept only when it is closer to
// the query than to every already-kept neighbor, which spreads the
// selected set instead of clustering it.
func (b *Builder) selectNeighbors(q []float32, cands []candidate, m int) []candidate {
	selected := make([]candidate, 0, m)
	for _, c := range cands {
		if len(selected) == m {
			break
		}
		keep := true
		for _, s := range selected {
			if b.distNodes(c.id, s.id) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		}
	}
	return selected
}

// link adds v to u's layer list, pruning with the heuristic when the
// layer's maximum degree is exceeded.
func (b *Builder) link(layer int, u, v int32) {
	if u == v {
		return
	}
	list := b.layers[u][layer]
	if slices.Contains(list, v) {
		return
	}

	maxDeg := b.maxDegree(layer)
	if len(list) < maxDeg {
		b.layers[u][layer] = append(list, v)
		return
	}

	// Over capacity: rerun the heuristic over the current neighbors
	// plus v, keeping the best maxDeg.
	cands := make([]candidate, 0, len(list)+1)
	uVec := b.vec(u)
	for _, w := range list {
		cands = append(cands, candidate{id: w, dist: b.dist(uVec, b.vec(w))})
	}
	cands = append(cands, candidate{id: v, dist: b.dist(uVec, b.vec(v))})
	slices.SortFunc(cands, func(a, c candidate) int {
		switch {
		case a.dist < c.dist:
			return -1
		case a.dist > c.dist:
			return 1
		default:
			return int(a.id - c.id)
		}
	})

	selected := b.selectNeighbors(uVec, cands, maxDeg)
	pruned := b.layers[u][layer][:0]
	for _, s := range selected {
		pruned = append(pruned, s.id)
	}
	b.layers[u][layer] = pruned
}
