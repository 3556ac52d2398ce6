package gannet

import (
	"sync/atomic"
	"time"
)

// Collector receives operational metrics. Implement it to integrate
// with a monitoring system; the metrics subpackage provides a
// Prometheus-backed implementation.
type Collector interface {
	// RecordBuild is called once after graph construction.
	RecordBuild(n int, d time.Duration)

	// RecordTrain is called after quantizer training.
	RecordTrain(d time.Duration)

	// RecordOptimize is called after the prefetch sweep with the
	// chosen parameters.
	RecordOptimize(po, pl int, d time.Duration)

	// RecordSearch is called after every search. err is nil on
	// success.
	RecordSearch(k int, d time.Duration, err error)
}

// NoopCollector discards all metrics.
type NoopCollector struct{}

func (NoopCollector) RecordBuild(int, time.Duration)             {}
func (NoopCollector) RecordTrain(time.Duration)                  {}
func (NoopCollector) RecordOptimize(int, int, time.Duration)     {}
func (NoopCollector) RecordSearch(int, time.Duration, error)     {}

// BasicCollector keeps in-memory counters, useful for debugging
// without external dependencies.
type BasicCollector struct {
	BuildCount       atomic.Int64
	BuildTotalNanos  atomic.Int64
	TrainCount       atomic.Int64
	TrainTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	OptimizeCount    atomic.Int64
}

// RecordBuild implements Collector.
func (b *BasicCollector) RecordBuild(_ int, d time.Duration) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(d.Nanoseconds())
}

// RecordTrain implements Collector.
func (b *BasicCollector) RecordTrain(d time.Duration) {
	b.TrainCount.Add(1)
	b.TrainTotalNanos.Add(d.Nanoseconds())
}

// RecordOptimize implements Collector.
func (b *BasicCollector) RecordOptimize(_, _ int, _ time.Duration) {
	b.OptimizeCount.Add(1)
}

// RecordSearch implements Collector.
func (b *BasicCollector) RecordSearch(_ int, d time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(d.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// AvgSearchLatency returns the mean search latency observed so far.
func (b *BasicCollector) AvgSearchLatency() time.Duration {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(b.SearchTotalNanos.Load() / count)
}
