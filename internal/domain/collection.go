package domain

// Metric is the similarity function of a collection.
type Metric string

const (
	// MetricCosine is cosine similarity; the only metric the pipeline creates collections with.
	MetricCosine Metric = "cosine"
)

// CollectionInfo describes an existing collection in the vector store.
// Dim is 0 when the backend cannot report it.
type CollectionInfo struct {
	Name   string
	Dim    int
	Metric Metric
}
