package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and graph traversal metrics.
var (
	// RetrievalRequestsTotal counts retrieval passes by flow (search, task_context) and mode (semantic, lexical).
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskctx",
			Name:      "retrieval_requests_total",
			Help:      "Total retrieval passes",
		},
		[]string{"flow", "mode"},
	)

	// CandidatesTotal counts ranked candidates by outcome: kept, below_threshold, skipped.
	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskctx",
			Name:      "ranking_candidates_total",
			Help:      "Candidates processed by the ranker",
		},
		[]string{"kind", "outcome"},
	)

	ResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskctx",
			Name:      "retrieval_results_returned",
			Help:      "Number of results returned per retrieval pass",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"flow"},
	)

	// SnippetsTotal counts snippets by source: default, anchored, llm, around, fallback.
	SnippetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskctx",
			Name:      "snippets_total",
			Help:      "Snippets produced by source",
		},
		[]string{"source"},
	)

	GraphNodesReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taskctx",
			Name:      "graph_nodes_returned",
			Help:      "Number of nodes returned per graph traversal",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)
