package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ssegate"

// Command outcome labels
const (
	StatusAccepted    = "accepted"
	StatusMalformed   = "malformed"
	StatusNotFound    = "not_found"
	StatusClosed      = "closed"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionsRejected *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration prometheus.Histogram
	CommandBytes    prometheus.Histogram
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of currently open push streams",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of push streams established",
			},
		),
		SessionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_rejected_total",
				Help:      "Stream establishment attempts that failed, by reason",
			},
			[]string{"reason"},
		),
		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Lifetime of push streams in seconds",
				Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
			},
		),

		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of commands received, by outcome",
			},
			[]string{"status"},
		),
		CommandDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent routing a command through the protocol engine",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CommandBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_payload_bytes",
				Help:      "Size of command payloads in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
	}

	m.registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionsRejected,
		m.SessionDuration,
		m.CommandsTotal,
		m.CommandDuration,
		m.CommandBytes,
	)

	return m
}

// SessionOpened records a newly established stream
func (m *Metrics) SessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed records the end of a stream that lived since createdAt
func (m *Metrics) SessionClosed(createdAt time.Time) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(time.Since(createdAt).Seconds())
}

// SessionRejected records a failed stream establishment
func (m *Metrics) SessionRejected(reason string) {
	m.SessionsRejected.WithLabelValues(reason).Inc()
}

// CommandHandled records the outcome of one command
func (m *Metrics) CommandHandled(status string, payloadBytes int, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(status).Inc()
	if payloadBytes > 0 {
		m.CommandBytes.Observe(float64(payloadBytes))
	}
	if duration > 0 {
		m.CommandDuration.Observe(duration.Seconds())
	}
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
