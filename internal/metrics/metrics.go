// Package metrics exposes Prometheus counters for media resolution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes.
const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Transcode results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	resolutionsTotal  *prometheus.CounterVec
	cacheHitsTotal    *prometheus.CounterVec
	transcodesTotal   *prometheus.CounterVec
	activeResolutions prometheus.Gauge
	wsConnections     prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "youcube_resolutions_total",
		Help: "Total number of media requests by outcome",
	}, []string{"outcome"})
	cacheHitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "youcube_cache_hits_total",
		Help: "Artifacts served from the cache without transcoding",
	}, []string{"kind"})
	transcodesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "youcube_transcodes_total",
		Help: "Converter runs by kind and result",
	}, []string{"kind", "result"})
	activeResolutions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "youcube_active_resolutions",
		Help: "Media requests currently in progress",
	})
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "youcube_ws_connections",
		Help: "Open client websocket connections",
	})

	registry.MustRegister(
		resolutionsTotal,
		cacheHitsTotal,
		transcodesTotal,
		activeResolutions,
		wsConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:          registry,
		resolutionsTotal:  resolutionsTotal,
		cacheHitsTotal:    cacheHitsTotal,
		transcodesTotal:   transcodesTotal,
		activeResolutions: activeResolutions,
		wsConnections:     wsConnections,
	}
}

// ResolutionStarted marks a request as in progress. The returned func records its
// outcome and must be called exactly once.
func (m *Metrics) ResolutionStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	m.activeResolutions.Inc()
	return func(outcome string) {
		m.activeResolutions.Dec()
		m.resolutionsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncCacheHit counts an artifact that was already cached.
func (m *Metrics) IncCacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(kind).Inc()
}

// IncTranscode counts a converter run.
func (m *Metrics) IncTranscode(kind string, ok bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultFailed
	}
	m.transcodesTotal.WithLabelValues(kind, result).Inc()
}

// ConnectionOpened tracks an open websocket. The returned func closes it.
func (m *Metrics) ConnectionOpened() func() {
	if m == nil {
		return func() {}
	}
	m.wsConnections.Inc()
	return m.wsConnections.Dec
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
