package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordBuild(1000, 2*time.Second)
	c.RecordTrain(time.Second)
	c.RecordOptimize(3, 2, time.Second)
	c.RecordSearch(10, time.Millisecond, nil)
	c.RecordSearch(10, time.Millisecond, errors.New("boom"))

	assert.InDelta(t, 1000, testutil.ToFloat64(c.buildNodes), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(c.optimizePO), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.optimizePL), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.searchesTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.searchesTotal.WithLabelValues("error")), 0)

	count, err := testutil.GatherAndCount(reg,
		"gannet_build_duration_seconds",
		"gannet_search_duration_seconds",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
