package searcher

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// numThreads is the process-wide default worker count for batch
// search and optimization; 0 means all CPUs.
var numThreads atomic.Int32

// SetNumThreads sets the process-wide default worker count. n <= 0
// restores the all-CPUs default.
func SetNumThreads(n int) {
	if n < 0 {
		n = 0
	}
	numThreads.Store(int32(n))
}

func resolveThreads(threads int) int {
	if threads > 0 {
		return threads
	}
	if n := int(numThreads.Load()); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// BatchSearch runs Search for nq queries held row-major in queries,
// returning the nq*k result ids. threads bounds the worker count;
// threads <= 0 uses the SetNumThreads default (all CPUs if unset).
func (s *Searcher) BatchSearch(queries []float32, nq, k, threads int) ([]int32, error) {
	if !s.trained {
		return nil, ErrNotTrained
	}
	if nq <= 0 {
		return nil, fmt.Errorf("%w: nq must be >= 1, got %d", ErrInvalidArgument, nq)
	}
	if len(queries) < nq*s.dim {
		return nil, fmt.Errorf("%w: queries length %d shorter than %d x %d", ErrInvalidArgument, len(queries), nq, s.dim)
	}
	threads = resolveThreads(threads)

	out := make([]int32, nq*k)
	var eg errgroup.Group
	eg.SetLimit(threads)
	for i := 0; i < nq; i++ {
		eg.Go(func() error {
			q := queries[i*s.dim : (i+1)*s.dim]
			return s.SearchInto(q, k, out[i*k:(i+1)*k])
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
