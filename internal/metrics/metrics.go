// Package metrics defines the Prometheus collectors of the credential monitor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label names.
const (
	LabelProvider = "provider"
	LabelResult   = "result"
	LabelOutcome  = "outcome"
)

// Refresh results.
const (
	ResultSuccess        = "success"
	ResultFailure        = "failure"
	ResultDiscoveryError = "discovery_error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	DiscoveryTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credmon_refresh_total",
				Help: "Number of token refresh attempts by result.",
			},
			[]string{LabelProvider, LabelResult},
		),
		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credmon_refresh_duration_seconds",
				Help:    "How long a token refresh attempt took, discovery included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{LabelProvider},
		),
		DiscoveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credmon_discovery_total",
				Help: "Token endpoint resolutions by outcome.",
			},
			[]string{LabelProvider, LabelOutcome},
		),
	}

	if reg != nil {
		reg.MustRegister(m.RefreshTotal, m.RefreshDuration, m.DiscoveryTotal)
	}

	return m
}

// ObserveRefresh records one refresh attempt.
func (m *Metrics) ObserveRefresh(provider, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(provider, result).Inc()
	m.RefreshDuration.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveDiscovery records how a token endpoint was resolved.
func (m *Metrics) ObserveDiscovery(provider, outcome string) {
	if m == nil {
		return
	}
	m.DiscoveryTotal.WithLabelValues(provider, outcome).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
