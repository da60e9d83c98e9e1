// Package metrics exposes Prometheus collectors for bundle sessions.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bundler"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Metrics struct {
	bundles         *prometheus.CounterVec
	bundleDuration  prometheus.Histogram
	resourceFetches *prometheus.CounterVec
	redirects       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bundles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Bundle sessions by terminal outcome.",
		}, []string{"outcome"}),
		bundleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_duration_seconds",
			Help:      "Time from session start to its terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		resourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_fetches_total",
			Help:      "Embedded resource fetches by outcome.",
		}, []string{"outcome"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect hops followed by outbound fetches.",
		}),
	}
	reg.MustRegister(m.bundles, m.bundleDuration, m.resourceFetches, m.redirects)
	return m
}

func (m *Metrics) ObserveBundle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.bundles.WithLabelValues(outcome).Inc()
	m.bundleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveResource(outcome string) {
	if m == nil {
		return
	}
	m.resourceFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRedirect() {
	if m == nil {
		return
	}
	m.redirects.Inc()
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
