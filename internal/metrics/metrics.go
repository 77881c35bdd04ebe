// Package metrics owns the Prometheus registry and every collector the
// service exports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mshauri"

// Escalation outcomes recorded on EscalationsTotal.
const (
	OutcomeRaised       = "raised"
	OutcomeDeduplicated = "deduplicated"
	OutcomeNotified     = "notified"
	OutcomeFailed       = "failed"
	OutcomeError        = "error"
)

// Collector groups the service metrics behind a private registry so tests can
// build as many as they like without colliding on the global one.
type Collector struct {
	registry *prometheus.Registry

	AnalysesTotal       *prometheus.CounterVec
	AssessmentsTotal    *prometheus.CounterVec
	EscalationsTotal    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,

		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Messages analysed, by resulting risk level.",
		}, []string{"risk_level"}),

		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Questionnaires scored, by resulting risk level.",
		}, []string{"risk_level"}),

		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Crisis escalations, by outcome.",
		}, []string{"outcome"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.AnalysesTotal,
		c.AssessmentsTotal,
		c.EscalationsTotal,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveAnalysis counts one analysed message.
func (c *Collector) ObserveAnalysis(riskLevel string) {
	c.AnalysesTotal.WithLabelValues(riskLevel).Inc()
}

// ObserveAssessment counts one scored questionnaire.
func (c *Collector) ObserveAssessment(riskLevel string) {
	c.AssessmentsTotal.WithLabelValues(riskLevel).Inc()
}

// ObserveEscalation counts one escalation outcome.
func (c *Collector) ObserveEscalation(outcome string) {
	c.EscalationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one finished request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
