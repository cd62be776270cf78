// Package metrics holds the prometheus collectors of the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	UploadOK       = "ok"
	UploadRejected = "rejected"
	UploadFailed   = "failed"
)

// Provider call outcomes.
const (
	ProviderOK        = "ok"
	ProviderError     = "error"
	ProviderCancelled = "cancelled"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	messages         *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	uploads          *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_messages_total",
			Help: "Messages appended to session stores, by sender.",
		}, []string{"sender"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_provider_requests_total",
			Help: "AI provider calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relaychat_provider_duration_seconds",
			Help:    "Latency of AI provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_uploads_total",
			Help: "Attachment uploads, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.messages,
		m.providerRequests,
		m.providerDuration,
		m.uploads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// MessageAppended counts one appended message.
func (m *Metrics) MessageAppended(sender string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(sender).Inc()
}

// ProviderCall records the outcome and latency of one provider call.
func (m *Metrics) ProviderCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Upload counts one upload attempt.
func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}
