package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	dispatches     *prometheus.CounterVec
	workerOutcomes *prometheus.CounterVec
	signals        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		dispatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_dispatches_total",
				Help: "Total number of symbol dispatch attempts",
			},
			[]string{"status"},
		),
		workerOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_worker_outcomes_total",
				Help: "Total number of completed symbol analyses",
			},
			[]string{"symbol", "result"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_signals_total",
				Help: "Total number of generated trading signals",
			},
			[]string{"symbol", "signal"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDispatch records a dispatch attempt with its status.
func (r *Recorder) RecordDispatch(status string) {
	r.dispatches.WithLabelValues(status).Inc()
}

// RecordWorkerOutcome records a finished symbol analysis.
func (r *Recorder) RecordWorkerOutcome(symbol, result string) {
	r.workerOutcomes.WithLabelValues(symbol, result).Inc()
}

// RecordSignal records a generated signal for a symbol.
func (r *Recorder) RecordSignal(symbol string, signal string) {
	r.signals.WithLabelValues(symbol, signal).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
