// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultSuccess       = "success"
	ResultCached        = "cached"
	ResultInvalidImage  = "invalid_image"
	ResultQuotaExceeded = "quota_exceeded"
	ResultProviderError = "provider_error"
	ResultInternalError = "internal_error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	DurationSeconds    *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	ProviderCallsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tongue",
			Subsystem: "analyzer",
			Name:      "requests_total",
			Help:      "Total number of analysis requests, labeled by result.",
		}, []string{"result"}),

		DurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tongue",
			Subsystem: "analyzer",
			Name:      "duration_seconds",
			Help:      "End-to-end time to analyze one photo.",
			// Vision calls take seconds; coarse buckets keep the series count low.
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"result"}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tongue",
			Subsystem: "analyzer",
			Name:      "cache_hits_total",
			Help:      "Total number of analyses served from the result cache.",
		}),

		ProviderCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tongue",
			Subsystem: "analyzer",
			Name:      "provider_calls_total",
			Help:      "Total number of LLM provider calls, labeled by provider and result.",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(m.RequestsTotal, m.DurationSeconds, m.CacheHitsTotal, m.ProviderCallsTotal)
	return m
}

// ObserveRequest records one finished analysis.
func (m *Metrics) ObserveRequest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(result).Inc()
	m.DurationSeconds.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) ProviderCall(provider, result string) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(provider, result).Inc()
}
