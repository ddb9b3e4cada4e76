// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability defines the Prometheus metrics research-spider exports.
//
// Metrics are registered against a caller-supplied registerer. The serve
// command uses its own registry and exposes it on /metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "research_spider"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExpansionsTotal     *prometheus.CounterVec
	ExpansionNodes      prometheus.Histogram
	ExpansionDuration   prometheus.Histogram
	FanoutDuration      *prometheus.HistogramVec
	SourceErrorsTotal   *prometheus.CounterVec
	CandidatesTotal     *prometheus.CounterVec
	CacheLookupsTotal   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ChatFailuresTotal   prometheus.Counter
	SupersededResults   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExpansionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Graph expansions by outcome (complete, budget_exhausted, invalid, cancelled).",
		}, []string{"outcome"}),
		ExpansionNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expansion_nodes",
			Help:      "Number of nodes in returned graphs.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 50, 100},
		}),
		ExpansionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expansion_duration_seconds",
			Help:      "Wall time of one graph expansion.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FanoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_call_duration_seconds",
			Help:      "Duration of one discovery source call.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"source"}),
		SourceErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Non-fatal discovery source failures.",
		}, []string{"source", "signal"}),
		CandidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates returned by discovery sources.",
		}, []string{"source", "signal"}),
		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Candidate cache lookups by result (hit, miss).",
		}, []string{"result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		ChatFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_failures_total",
			Help:      "Conversational backend failures answered with the placeholder.",
		}),
		SupersededResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_results_total",
			Help:      "Session expansion results discarded because a newer request was issued.",
		}),
	}
	reg.MustRegister(
		m.ExpansionsTotal, m.ExpansionNodes, m.ExpansionDuration, m.FanoutDuration,
		m.SourceErrorsTotal, m.CandidatesTotal, m.CacheLookupsTotal,
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.ChatFailuresTotal, m.SupersededResults,
	)
	return m
}

// ObserveSourceCall records one source call.
func (m *Metrics) ObserveSourceCall(source, signal string, d time.Duration, candidates int, failed bool) {
	if m == nil {
		return
	}
	m.FanoutDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.SourceErrorsTotal.WithLabelValues(source, signal).Inc()
		return
	}
	m.CandidatesTotal.WithLabelValues(source, signal).Add(float64(candidates))
}

// ObserveExpansion records one finished expansion.
func (m *Metrics) ObserveExpansion(outcome string, nodes int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExpansionsTotal.WithLabelValues(outcome).Inc()
	if nodes > 0 {
		m.ExpansionNodes.Observe(float64(nodes))
	}
	m.ExpansionDuration.Observe(d.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncChatFailure counts a chat grounding failure.
func (m *Metrics) IncChatFailure() {
	if m == nil {
		return
	}
	m.ChatFailuresTotal.Inc()
}

// IncSuperseded counts a discarded stale session result.
func (m *Metrics) IncSuperseded() {
	if m == nil {
		return
	}
	m.SupersededResults.Inc()
}
