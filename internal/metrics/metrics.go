// Package metrics provides the gateway's runtime counters and histograms.
//
// Everything is exposed two ways: as Prometheus collectors (scraped from the
// admin API's /admin/metrics endpoint via promhttp) and as a lock-free JSON
// Snapshot of the request counters. No endpoint serves Snapshot; the admin
// API's /admin/status reports uptime and analyzers only.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all runtime counters for a running gateway instance.
type Metrics struct {
	RequestsTotal   atomic.Int64
	RequestsFlagged atomic.Int64
	RequestsPassed  atomic.Int64
	RequestsError   atomic.Int64

	requestsTotalVec prometheus.Counter
	analyzerCalls    *prometheus.CounterVec
	analyzerLatency  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	registry         *prometheus.Registry

	startTime time.Time
}

// New constructs a Metrics instance with its own Prometheus registry, so
// multiple gateway instances in the same process (as in tests) never
// collide on the default global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	requestsTotalVec := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "requests_total",
		Help:      "Total number of /validate requests handled.",
	})
	analyzerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "analyzer_calls_total",
		Help:      "Analyzer calls by name and outcome.",
	}, []string{"analyzer", "outcome"})
	analyzerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "analyzer_call_duration_seconds",
		Help:      "Analyzer call latency by name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"analyzer"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "breaker_state",
		Help:      "Circuit breaker state by analyzer (0=closed, 1=half_open, 2=open).",
	}, []string{"analyzer"})

	reg.MustRegister(requestsTotalVec, analyzerCalls, analyzerLatency, breakerState)

	return &Metrics{
		requestsTotalVec: requestsTotalVec,
		analyzerCalls:    analyzerCalls,
		analyzerLatency:  analyzerLatency,
		breakerState:     breakerState,
		registry:         reg,
		startTime:        time.Now(),
	}
}

// Registry returns the Prometheus registry backing this instance, for wiring
// into promhttp.HandlerFor in the admin server.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRequest tallies one completed /validate request by its overall outcome.
func (m *Metrics) RecordRequest(outcome string) {
	m.RequestsTotal.Add(1)
	m.requestsTotalVec.Inc()
	switch outcome {
	case "flagged", "fixed", "blocked":
		m.RequestsFlagged.Add(1)
	case "error":
		m.RequestsError.Add(1)
	default:
		m.RequestsPassed.Add(1)
	}
}

// RecordAnalyzerCall tallies one analyzer call and its latency.
func (m *Metrics) RecordAnalyzerCall(analyzer, outcome string, d time.Duration) {
	m.analyzerCalls.WithLabelValues(analyzer, outcome).Inc()
	m.analyzerLatency.WithLabelValues(analyzer).Observe(d.Seconds())
}

// SetBreakerState records the current numeric state of one analyzer's breaker.
func (m *Metrics) SetBreakerState(analyzer string, state int) {
	m.breakerState.WithLabelValues(analyzer).Set(float64(state))
}

// Snapshot returns a point-in-time view suitable for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Requests: RequestSnapshot{
			Total:   m.RequestsTotal.Load(),
			Flagged: m.RequestsFlagged.Load(),
			Passed:  m.RequestsPassed.Load(),
			Error:   m.RequestsError.Load(),
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// Snapshot is a point-in-time view of the request-level counters.
type Snapshot struct {
	Requests   RequestSnapshot `json:"requests"`
	UptimeSecs float64         `json:"uptimeSecs"`
}

// RequestSnapshot holds request-level counters.
type RequestSnapshot struct {
	Total   int64 `json:"total"`
	Flagged int64 `json:"flagged"`
	Passed  int64 `json:"passed"`
	Error   int64 `json:"error"`
}
