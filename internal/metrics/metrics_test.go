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

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.SyncRuns)
	assert.NotNil(t, m.SyncEvents)
	assert.NotNil(t, m.CacheLookups)
	assert.NotNil(t, m.ExternalFetchDuration)
}

func TestSyncCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.SyncRun("ok")
	m.SyncRun("ok")
	m.SyncRun("error")
	m.SyncEvent("advanced", 3)
	m.SyncEvent("failed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SyncEvents.WithLabelValues("advanced")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SyncEvents))
}

func TestCacheLookupsAndFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.CacheLookup("sermon", "hit")
	m.CacheLookup("sermon", "miss")
	m.CacheLookup("livestream", "stale")
	m.ObserveFetch("youtube", time.Now(), nil)
	m.ObserveFetch("youtube", time.Now(), errors.New("boom"))

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]int{}
	for _, f := range families {
		counts[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 3, counts["sanctuary_sermon_cache_lookups_total"])
	assert.Equal(t, 2, counts["sanctuary_external_fetch_duration_seconds"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SyncRun("ok")
	m.SyncEvent("advanced", 1)
	m.CacheLookup("sermon", "hit")
	m.ObserveFetch("facade", time.Now(), nil)
}
