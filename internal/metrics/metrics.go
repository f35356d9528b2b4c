// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus collectors for searches, providers,
// caches, and answer streams. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_assistant"

// Recorder owns the collectors registered on one registry.
type Recorder struct {
	registry prometheus.Gatherer

	searchDuration    prometheus.Histogram
	searchResults     prometheus.Histogram
	duplicatesRemoved prometheus.Counter
	providerRequests  *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	degraded          *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	streamEvents      *prometheus.CounterVec
	streams           *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Federated search duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results_count",
			Help:      "Unique documents per federated search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}),
		duplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Documents discarded as duplicates",
		}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider searches by outcome",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Provider search latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
		}, []string{"provider"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Optional stages that fell back",
		}, []string{"component"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"cache", "result"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Answer stream events emitted by type",
		}, []string{"type"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Answer streams by final state",
		}, []string{"state"}),
	}
	reg.MustRegister(
		r.searchDuration, r.searchResults, r.duplicatesRemoved,
		r.providerRequests, r.providerLatency, r.degraded,
		r.cacheLookups, r.streamEvents, r.streams,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Search records one completed federated search.
func (r *Recorder) Search(d time.Duration, results, duplicates int) {
	if r == nil {
		return
	}
	r.searchDuration.Observe(d.Seconds())
	r.searchResults.Observe(float64(results))
	r.duplicatesRemoved.Add(float64(duplicates))
}

// Provider records one provider call.
func (r *Recorder) Provider(name string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.providerRequests.WithLabelValues(name, status).Inc()
	r.providerLatency.WithLabelValues(name).Observe(d.Seconds())
}

// Degraded records a fallback in component (expansion, semantic, rerank).
func (r *Recorder) Degraded(component string) {
	if r == nil {
		return
	}
	r.degraded.WithLabelValues(component).Inc()
}

// CacheLookup records a hit or miss on cache.
func (r *Recorder) CacheLookup(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

// StreamEvent records one emitted event of the given type.
func (r *Recorder) StreamEvent(eventType string) {
	if r == nil {
		return
	}
	r.streamEvents.WithLabelValues(eventType).Inc()
}

// StreamFinished records the final state of one answer stream.
func (r *Recorder) StreamFinished(state string) {
	if r == nil {
		return
	}
	r.streams.WithLabelValues(state).Inc()
}
