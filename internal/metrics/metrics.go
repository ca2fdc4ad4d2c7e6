package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendboard"

// Metrics groups the service collectors.
type Metrics struct {
	Mutations    *prometheus.CounterVec
	Logins       *prometheus.CounterVec
	RateLimited  prometheus.Counter
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Roster and ledger commands by operation and outcome (applied, noop, duplicate).",
		}, []string{"operation", "outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Mutations, m.Logins, m.RateLimited, m.HTTPDuration)
	return m
}

// NewDefault registers on a fresh registry that also carries Go runtime and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// Mutation counts one store command.
func (m *Metrics) Mutation(operation string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "noop"
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
