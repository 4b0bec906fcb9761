package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "findex",
			Name:      "retrieval_stage_duration_seconds",
			Help:      "Retrieval pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "findex",
			Name:      "retrieval_backend_errors_total",
			Help:      "Backend errors absorbed by retrieval stages",
		},
		[]string{"backend", "stage"},
	)

	CandidatesTotal = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "findex",
			Name:      "retrieval_candidates",
			Help:      "Candidate counts per retrieval leg",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 300},
		},
		[]string{"leg"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers pipeline metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(CandidatesTotal)
	retrievalMetricsRegistered = true
}
