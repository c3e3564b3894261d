// Package metrics holds process-wide Prometheus metrics shared by the HTTP
// layer. Feature packages own their domain metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds HTTP and account metrics for the application.
type Metrics struct {
	UsersCreated    prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	StreamClients   prometheus.Gauge
	RateLimited     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "churnboard_users_created_total",
			Help: "Total number of users registered",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churnboard_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "churnboard_dashboard_stream_clients",
			Help: "Number of connected dashboard stream clients",
		}),
		RateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "churnboard_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"scope"}),
	}
}

// IncrementUsersCreated increments the users created counter by 1.
func (m *Metrics) IncrementUsersCreated() {
	if m != nil {
		m.UsersCreated.Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

// StreamClientConnected tracks a new dashboard stream subscriber.
func (m *Metrics) StreamClientConnected() {
	if m != nil {
		m.StreamClients.Inc()
	}
}

// StreamClientDisconnected tracks a dashboard stream subscriber leaving.
func (m *Metrics) StreamClientDisconnected() {
	if m != nil {
		m.StreamClients.Dec()
	}
}

// IncrementRateLimited counts one rejected request for scope.
func (m *Metrics) IncrementRateLimited(scope string) {
	if m != nil {
		m.RateLimited.WithLabelValues(scope).Inc()
	}
}
