package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Sync passes by result (ok, error).
	SyncRuns *prometheus.CounterVec

	// Per-event sync outcomes (advanced, skipped, failed, deleted).
	SyncEvents *prometheus.CounterVec

	// Sermon cache lookups (slot: sermon/livestream, result: hit, miss, stale, placeholder).
	CacheLookups *prometheus.CounterVec

	// Outbound catalog/facade calls (source: youtube, jellyfin, facade).
	ExternalFetchDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_event_sync_runs_total",
				Help: "Total number of recurring event sync passes",
			},
			[]string{"result"},
		),
		SyncEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_event_sync_events_total",
				Help: "Events touched by recurring event sync, by outcome",
			},
			[]string{"outcome"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_sermon_cache_lookups_total",
				Help: "Sermon cache lookups by slot and result",
			},
			[]string{"slot", "result"},
		),
		ExternalFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanctuary_external_fetch_duration_seconds",
				Help:    "Latency of calls to external media and sermon APIs",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source", "status"},
		),
	}

	reg.MustRegister(
		m.SyncRuns,
		m.SyncEvents,
		m.CacheLookups,
		m.ExternalFetchDuration,
	)

	return m
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) SyncRun(result string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) SyncEvent(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SyncEvents.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) CacheLookup(slot, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(slot, result).Inc()
}

func (m *Metrics) ObserveFetch(source string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ExternalFetchDuration.WithLabelValues(source, status).Observe(time.Since(started).Seconds())
}
