// Package metrics exposes the Prometheus collectors for the read path, the
// circuit breaker and the connection pools.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/microcosm-collective/pantry/breaker"
)

const namespace = "pantry"

// Results recorded against the cache and store counters
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultUnavailable = "unavailable"
	ResultCorrupt     = "corrupt"
	ResultOK          = "ok"
	ResultFailed      = "failed"
	ResultSkipped     = "skipped"
	ResultRejected    = "rejected"
)

// Metrics holds every collector, registered on its own registry
type Metrics struct {
	Registry *prometheus.Registry

	CacheRequests      *prometheus.CounterVec
	CacheWrites        *prometheus.CounterVec
	StoreRequests      *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	DBConnections      *prometheus.GaugeVec
	CacheConnections   *prometheus.GaugeVec
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Cache lookups by result.",
			},
			[]string{"result"},
		),
		CacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Cache write-backs by result.",
			},
			[]string{"result"},
		),
		StoreRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "requests_total",
				Help:      "Guarded store calls by result.",
			},
			[]string{"result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"name"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Circuit breaker state changes.",
			},
			[]string{"name", "from", "to"},
		),
		DBConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "connections",
				Help:      "Database pool connections by state.",
			},
			[]string{"state"},
		),
		CacheConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "connections",
				Help:      "Cache pool connections by state.",
			},
			[]string{"state"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route and status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}

	m.Registry.MustRegister(
		m.CacheRequests,
		m.CacheWrites,
		m.StoreRequests,
		m.BreakerState,
		m.BreakerTransitions,
		m.DBConnections,
		m.CacheConnections,
		m.RequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveBreakerState records the current state of the named breaker
func (m *Metrics) ObserveBreakerState(name string, s breaker.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(s))
}

// ObserveTransition records a breaker state change
func (m *Metrics) ObserveTransition(name string, from breaker.State, to breaker.State) {
	m.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	m.ObserveBreakerState(name, to)
}

// ObserveDBStats records the database pool sizes
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
}

// ObserveCachePool records the cache pool sizes
func (m *Metrics) ObserveCachePool(total int, idle int) {
	m.CacheConnections.WithLabelValues("open").Set(float64(total))
	m.CacheConnections.WithLabelValues("idle").Set(float64(idle))
}
