package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval orchestration Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retriever",
			Name:      "retrieval_searches_total",
			Help:      "Total retrieval runs by execution mode",
		},
		[]string{"mode"}, // agentic / fallback
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retriever",
			Name:      "retrieval_search_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"mode"},
	)

	PlannerOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retriever",
			Name:      "retrieval_planner_total",
			Help:      "Query planner results",
		},
		[]string{"outcome"}, // decomposed / unparsable / unavailable
	)

	SubqueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retriever",
			Name:      "retrieval_subqueries_total",
			Help:      "Executed subqueries by status",
		},
		[]string{"status"}, // ok / error
	)

	SubqueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "retriever",
			Name:      "retrieval_subquery_duration_seconds",
			Help:      "Single subquery search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SearchIndexRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retriever",
			Name:      "search_index_requests_total",
			Help:      "Requests sent to the search index backend",
		},
		[]string{"backend", "status"},
	)

	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retriever",
			Name:      "completion_requests_total",
			Help:      "Requests sent to the completion provider",
		},
		[]string{"model", "status"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(PlannerOutcomesTotal)
	prometheus.MustRegister(SubqueriesTotal)
	prometheus.MustRegister(SubqueryDuration)
	prometheus.MustRegister(SearchIndexRequestsTotal)
	prometheus.MustRegister(CompletionRequestsTotal)
	retrievalMetricsRegistered = true
}
