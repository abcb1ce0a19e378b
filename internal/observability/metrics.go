package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	requestsTotal     *prometheus.CounterVec
	latencySeconds    *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	attemptsCreated   prometheus.Counter
	submissionsTotal  *prometheus.CounterVec
	patchBatchesTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the quiz API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_requests_total",
			Help: "Total number of quiz API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_latency_seconds",
			Help:    "Latency distribution for quiz API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_errors_total",
			Help: "Total number of error responses returned by quiz endpoints.",
		}, []string{"method", "route", "status"})

		attemptsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_created_total",
			Help: "Total number of quiz attempts generated.",
		})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempt_submissions_total",
			Help: "Total number of finalized attempts by terminal status.",
		}, []string{"status"})

		patchBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_response_patch_batches_total",
			Help: "Total number of applied response patch batches.",
		})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, attemptsCreated, submissionsTotal, patchBatchesTotal)
	})
}

// Requests exposes the counter for served requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the request latency histogram.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// AttemptsCreated exposes the attempt creation counter.
func AttemptsCreated() prometheus.Counter {
	RegisterMetrics()
	return attemptsCreated
}

// Submissions exposes the finalization counter, labelled by terminal status.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// PatchBatches exposes the response patch batch counter.
func PatchBatches() prometheus.Counter {
	RegisterMetrics()
	return patchBatchesTotal
}
