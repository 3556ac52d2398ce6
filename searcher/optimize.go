package searcher

import (
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	tryPOs = 10
	tryPLs = 5
	tryK   = 10
)

// Optimize sweeps the prefetch parameters (po, pl) over the sample
// captured by SetData and keeps the pair with the lowest total search
// time. A (1, 1) baseline is measured for the log line only. threads
// bounds the worker count; threads <= 0 uses the SetNumThreads default
// (all CPUs if unset).
func (s *Searcher) Optimize(threads int) error {
	if !s.trained {
		return ErrNotTrained
	}
	threads = resolveThreads(threads)

	maxPO := tryPOs
	if r := s.g.MaxDegree(); r < maxPO {
		maxPO = r
	}
	maxPL := tryPLs
	if lines := (s.quant.CodeSize() + 63) / 64; lines < maxPL {
		maxPL = lines
	}
	if maxPO < 1 {
		maxPO = 1
	}
	if maxPL < 1 {
		maxPL = 1
	}

	s.logger.Info("starting prefetch optimization",
		"sample", len(s.sample)/s.dim,
		"max_po", maxPO,
		"max_pl", maxPL,
		"threads", threads,
	)

	// Warmup pass so first-touch effects don't bias the sweep.
	_ = s.sweepOnce(threads)

	bestPO, bestPL := 1, 1
	minElapsed := time.Duration(1<<63 - 1)
	for po := 1; po <= maxPO; po++ {
		for pl := 1; pl <= maxPL; pl++ {
			s.po, s.pl = po, pl
			elapsed := s.sweepOnce(threads)
			if elapsed < minElapsed {
				minElapsed = elapsed
				bestPO, bestPL = po, pl
			}
		}
	}

	s.po, s.pl = 1, 1
	baseline := s.sweepOnce(threads)

	s.po, s.pl = bestPO, bestPL
	improvement := 0.0
	if minElapsed > 0 {
		improvement = 100 * (float64(baseline)/float64(minElapsed) - 1)
	}
	s.logger.Info("prefetch optimization done",
		"po", bestPO,
		"pl", bestPL,
		"improvement_pct", improvement,
	)
	if s.collector != nil {
		s.collector.RecordOptimize(bestPO, bestPL, minElapsed)
	}
	return nil
}

// sweepOnce runs the full search routine over every sample query and
// returns the elapsed wall-clock time.
func (s *Searcher) sweepOnce(threads int) time.Duration {
	nq := len(s.sample) / s.dim
	start := time.Now()

	var eg errgroup.Group
	eg.SetLimit(threads)
	for i := 0; i < nq; i++ {
		q := s.sample[i*s.dim : (i+1)*s.dim]
		eg.Go(func() error {
			dst := make([]int32, tryK)
			return s.searchInto(q, tryK, dst)
		})
	}
	// Sample queries reuse trained state; errors cannot occur here.
	_ = eg.Wait()

	return time.Since(start)
}
