package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for feature rankings.
type Metrics struct {
	// Ranking computations by mode and outcome
	Computations *prometheus.CounterVec

	// Cache lookups by mode and result
	CacheLookups *prometheus.CounterVec

	// End-to-end computation latency, fetch included
	ComputeDuration *prometheus.HistogramVec

	// Source fetch latency by explanation file
	FetchDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all ranking metrics registered.
func New() *Metrics {
	return &Metrics{
		Computations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "churnboard_ranking_computations_total",
			Help: "Total feature ranking computations by mode and outcome",
		}, []string{"mode", "outcome"}), // outcome: "success", "failure"

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "churnboard_ranking_cache_lookups_total",
			Help: "Total ranking cache lookups by mode and result",
		}, []string{"mode", "result"}), // result: "hit", "miss"

		ComputeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churnboard_ranking_compute_duration_seconds",
			Help:    "Duration of feature ranking computations including source fetches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),

		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churnboard_explain_fetch_duration_seconds",
			Help:    "Duration of explanation file fetches",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"file"}),
	}
}

// ObserveCompute records one finished computation.
func (m *Metrics) ObserveCompute(mode string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Computations.WithLabelValues(mode, outcome).Inc()
	m.ComputeDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// IncrementCacheLookup records a cache hit or miss.
func (m *Metrics) IncrementCacheLookup(mode string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(mode, result).Inc()
}

// ObserveFetch records the latency of one explanation file fetch.
func (m *Metrics) ObserveFetch(file string, d time.Duration) {
	if m != nil {
		m.FetchDuration.WithLabelValues(file).Observe(d.Seconds())
	}
}
