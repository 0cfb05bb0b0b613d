package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// GraphQL transport metrics
	GraphQLRequests *prometheus.CounterVec
	GraphQLDuration *prometheus.HistogramVec
	GraphQLErrors   *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec

	// Client state metrics
	CacheReads          *prometheus.CounterVec
	OptimisticMutations *prometheus.CounterVec
	AuthEvents          *prometheus.CounterVec

	// Application layer
	QueryDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry, so several can
// coexist in one process (tests, multiple binaries).
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GraphQLRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphql_requests_total",
				Help:      "GraphQL operations sent upstream by outcome",
			},
			[]string{"operation", "outcome"},
		),
		GraphQLDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graphql_request_duration_seconds",
				Help:      "GraphQL round trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		GraphQLErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphql_response_errors_total",
				Help:      "Errors reported inside GraphQL responses",
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		CacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_reads_total",
				Help:      "Normalized cache reads by result",
			},
			[]string{"operation", "result"},
		),
		OptimisticMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimistic_mutations_total",
				Help:      "Optimistic mutations by final outcome",
			},
			[]string{"outcome"},
		),
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Auth state changes by event and reconciler action",
			},
			[]string{"event", "action"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query bus handling time by query type and outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query", "outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GraphQLRequests,
		c.GraphQLDuration,
		c.GraphQLErrors,
		c.BreakerState,
		c.CacheReads,
		c.OptimisticMutations,
		c.AuthEvents,
		c.QueryDuration,
	)

	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTP observes one served request.
func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordGraphQL observes one upstream GraphQL round trip.
func (c *Collector) RecordGraphQL(operation, outcome string, d time.Duration) {
	c.GraphQLRequests.WithLabelValues(operation, outcome).Inc()
	c.GraphQLDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordGraphQLErrors counts errors carried in a response body.
func (c *Collector) RecordGraphQLErrors(operation string, n int) {
	c.GraphQLErrors.WithLabelValues(operation).Add(float64(n))
}

// SetBreakerState records a circuit breaker transition.
func (c *Collector) SetBreakerState(name string, state int) {
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCacheRead counts a normalized cache read.
func (c *Collector) RecordCacheRead(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheReads.WithLabelValues(operation, result).Inc()
}

// RecordMutation counts an optimistic mutation outcome.
func (c *Collector) RecordMutation(outcome string) {
	c.OptimisticMutations.WithLabelValues(outcome).Inc()
}

// RecordAuthEvent counts an auth state change and what was done about it.
func (c *Collector) RecordAuthEvent(event, action string) {
	c.AuthEvents.WithLabelValues(event, action).Inc()
}

// RecordQuery observes one query bus dispatch.
func (c *Collector) RecordQuery(query, outcome string, d time.Duration) {
	c.QueryDuration.WithLabelValues(query, outcome).Observe(d.Seconds())
}
