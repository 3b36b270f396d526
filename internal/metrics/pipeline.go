package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vector store and pipeline metrics.
var (
	VectorStoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectorstore_operations_total",
			Help:      "Vector store operations by backend, operation and status",
		},
		[]string{"backend", "op", "status"},
	)

	VectorStoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vectorstore_operation_duration_seconds",
			Help:      "Vector store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_documents_total",
			Help:      "Ingested documents by final stage",
		},
		[]string{"stage"},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_uploaded_total",
			Help:      "Chunks uploaded to the vector store",
		},
	)

	RetrievalOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_outcomes_total",
			Help:      "Retrieval requests by outcome",
		},
		[]string{"outcome"}, // answered, no_results, unreadable, search_error, failed
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Generative model requests",
		},
		[]string{"model", "status"},
	)
)

// Status label values shared by the counters above.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
