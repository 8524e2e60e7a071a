package prometheus

import (
	"time"

	"github.com/marmos91/memfsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// socketMetrics is the Prometheus implementation of metrics.SocketMetrics.
type socketMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       *prometheus.GaugeVec
	protocolErrors         prometheus.Counter
	rateLimited            prometheus.Counter
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
}

// NewSocketMetrics creates a Prometheus-backed metrics.SocketMetrics.
//
// Returns a no-op implementation if the registry is not initialized.
func NewSocketMetrics() metrics.SocketMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSocketMetrics()
	}

	reg := metrics.GetRegistry()

	return &socketMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "memfsd_socket_requests_total",
				Help: "Total number of requests by operation and status",
			},
			[]string{"op", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "memfsd_socket_request_duration_microseconds",
				Help: "Duration of request handling in microseconds",
				Buckets: []float64{
					10,
					50,
					100,
					500,
					1000,
					10000,
				},
			},
			[]string{"op"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memfsd_socket_requests_in_flight",
				Help: "Current number of requests being processed",
			},
			[]string{"op"},
		),
		protocolErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "memfsd_socket_protocol_errors_total",
				Help: "Total number of malformed request lines",
			},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "memfsd_socket_rate_limited_total",
				Help: "Total number of requests delayed by the per-connection rate limit",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "memfsd_socket_active_connections",
				Help: "Current number of active connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "memfsd_socket_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "memfsd_socket_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "memfsd_socket_connections_force_closed_total",
				Help: "Total number of connections force-closed at the shutdown timeout",
			},
		),
	}
}

func (m *socketMetrics) RecordRequest(op string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(op, status).Inc()
	m.requestDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()))
}

func (m *socketMetrics) RecordRequestStart(op string) {
	m.requestsInFlight.WithLabelValues(op).Inc()
}

func (m *socketMetrics) RecordRequestEnd(op string) {
	m.requestsInFlight.WithLabelValues(op).Dec()
}

func (m *socketMetrics) RecordProtocolError() {
	m.protocolErrors.Inc()
}

func (m *socketMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

func (m *socketMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *socketMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *socketMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *socketMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}
