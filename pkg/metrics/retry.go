package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RetryMetrics tracks outcomes for any operation driven through
// internal/retry (currently the pool's connect retries).
type RetryMetrics struct {
	AttemptsTotal      *prometheus.CounterVec
	DurationSeconds    *prometheus.HistogramVec
	BackoffSeconds     *prometheus.HistogramVec
	FinalAttemptsTotal *prometheus.HistogramVec
}

var (
	retryMetricsInstance *RetryMetrics
	retryMetricsOnce     sync.Once
)

// NewRetryMetrics returns the process-wide singleton RetryMetrics,
// registering it with Prometheus on first call.
func NewRetryMetrics() *RetryMetrics {
	retryMetricsOnce.Do(func() {
		retryMetricsInstance = &RetryMetrics{
			AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "docgraph", Subsystem: "retry", Name: "attempts_total",
				Help: "Total number of retry attempts by operation, outcome, and error type",
			}, []string{"operation", "outcome", "error_type"}),

			DurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "docgraph", Subsystem: "retry", Name: "duration_seconds",
				Help:    "Duration of a single retry attempt",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			}, []string{"operation", "outcome"}),

			BackoffSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "docgraph", Subsystem: "retry", Name: "backoff_seconds",
				Help:    "Actual backoff delay observed before a retry attempt",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
			}, []string{"operation"}),

			FinalAttemptsTotal: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "docgraph", Subsystem: "retry", Name: "final_attempts_total",
				Help:    "Number of attempts made until final success or failure",
				Buckets: []float64{1, 2, 3, 4, 5, 10, 20},
			}, []string{"operation", "outcome"}),
		}
	})
	return retryMetricsInstance
}

// RecordAttempt records a single retry attempt.
func (m *RetryMetrics) RecordAttempt(operation, outcome, errorType string, duration float64) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(operation, outcome, errorType).Inc()
	m.DurationSeconds.WithLabelValues(operation, outcome).Observe(duration)
}

// RecordBackoff records the backoff delay observed before a retry attempt.
func (m *RetryMetrics) RecordBackoff(operation string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.BackoffSeconds.WithLabelValues(operation).Observe(delaySeconds)
}

// RecordFinalAttempt records the attempt count when an operation settles.
func (m *RetryMetrics) RecordFinalAttempt(operation, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.FinalAttemptsTotal.WithLabelValues(operation, outcome).Observe(float64(attempts))
}
