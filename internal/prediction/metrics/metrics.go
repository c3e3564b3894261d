package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for predictions.
type Metrics struct {
	PredictionsCreated *prometheus.CounterVec
	PredictorLatency   *prometheus.HistogramVec
	PredictorFailures  *prometheus.CounterVec
	CSVExports         prometheus.Counter
}

// New creates a new Metrics instance with all prediction metrics registered.
func New() *Metrics {
	return &Metrics{
		PredictionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "churnboard_predictions_created_total",
			Help: "Total stored predictions by model and risk level",
		}, []string{"model", "risk_level"}),

		PredictorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churnboard_predictor_request_duration_seconds",
			Help:    "Latency of calls to the model-serving endpoint",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"model"}),

		PredictorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "churnboard_predictor_failures_total",
			Help: "Total failed calls to the model-serving endpoint",
		}, []string{"model"}),

		CSVExports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "churnboard_prediction_exports_total",
			Help: "Total CSV exports of the prediction table",
		}),
	}
}

// IncrementCreated records one stored prediction.
func (m *Metrics) IncrementCreated(model, riskLevel string) {
	if m != nil {
		m.PredictionsCreated.WithLabelValues(model, riskLevel).Inc()
	}
}

// ObservePredictor records one predictor call.
func (m *Metrics) ObservePredictor(model string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.PredictorLatency.WithLabelValues(model).Observe(d.Seconds())
	if !ok {
		m.PredictorFailures.WithLabelValues(model).Inc()
	}
}

// IncrementExports records one CSV export.
func (m *Metrics) IncrementExports() {
	if m != nil {
		m.CSVExports.Inc()
	}
}
