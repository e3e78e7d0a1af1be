// Package metrics provides Prometheus metrics for wpx
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
)

// Registration outcomes.
const (
	StatusRegistered = "registered"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Metrics holds all Prometheus metrics for wpx
type Metrics struct {
	CacheRequestsTotal      *prometheus.CounterVec
	CacheInvalidationsTotal prometheus.Counter
	CacheKeysTracked        prometheus.Gauge

	RegistrationsTotal *prometheus.CounterVec

	PipelineRunsTotal    *prometheus.CounterVec
	PipelineRunDuration  prometheus.Histogram
	PipelineLastRunEpoch prometheus.Gauge

	SeedImportsTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpx_cache_requests_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"},
		),
		CacheInvalidationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wpx_cache_invalidated_keys_total",
				Help: "Total number of cache keys removed by invalidation",
			},
		),
		CacheKeysTracked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wpx_cache_keys_tracked",
				Help: "Number of keys currently recorded for invalidation",
			},
		),
		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpx_registrations_total",
				Help: "Total number of registration attempts by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		PipelineRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpx_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"status"},
		),
		PipelineRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wpx_pipeline_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		PipelineLastRunEpoch: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wpx_pipeline_last_run_timestamp_seconds",
				Help: "Unix time of the last completed pipeline run",
			},
		),
		SeedImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpx_seed_imports_total",
				Help: "Total number of seed file imports by outcome",
			},
			[]string{"status"},
		),
	}
}

// RecordCache counts one cache lookup.
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordInvalidation counts removed keys.
func (m *Metrics) RecordInvalidation(keys int) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.Add(float64(keys))
}

// SetTrackedKeys reports the size of the invalidation registry.
func (m *Metrics) SetTrackedKeys(n int) {
	if m == nil {
		return
	}
	m.CacheKeysTracked.Set(float64(n))
}

// RecordRegistration counts one registration outcome.
func (m *Metrics) RecordRegistration(kind, status string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordPipelineRun records a finished run.
func (m *Metrics) RecordPipelineRun(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineRunDuration.Observe(duration.Seconds())
	m.PipelineLastRunEpoch.Set(float64(time.Now().Unix()))
}

// RecordSeedImport counts a seed import.
func (m *Metrics) RecordSeedImport(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SeedImportsTotal.WithLabelValues(status).Inc()
}
