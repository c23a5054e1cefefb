package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairingOutcomes counts GetOrCreatePairing results by outcome
	// (resumed, joined, created, wait, join_lost).
	PairingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmogame_pairing_outcomes_total",
			Help: "Pairing requests by outcome",
		},
		[]string{"outcome"},
	)

	// AnswersTotal counts judged answers by game model and result.
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmogame_answers_total",
			Help: "Judged answers by game model and result",
		},
		[]string{"model", "result"},
	)

	AttemptTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmogame_attempt_timeouts_total",
			Help: "Attempts closed because their deadline passed",
		},
		[]string{"model"},
	)

	EstimationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmogame_estimation_runs_total",
			Help: "Rasch estimation runs by status",
		},
		[]string{"status"},
	)

	EstimationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mmogame_estimation_duration_seconds",
			Help:    "Wall time of one estimation pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	EstimationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mmogame_estimation_queue_depth",
			Help: "Estimation jobs waiting for a worker",
		},
	)

	// RequestCounter counts HTTP requests by status code, method, and route template
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmogame_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmogame_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)
)

// ObserveEstimation records the outcome and duration of one estimation run.
func ObserveEstimation(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EstimationRuns.WithLabelValues(status).Inc()
	EstimationDuration.Observe(time.Since(start).Seconds())
}
