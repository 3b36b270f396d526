package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      Metric
	DocumentInstruction string
	QueryInstruction    string
	BatchSize           int
	MaxBatchItems       int
}

// DefaultVectorConfig returns defaults tuned for gemini-embedding-001 at 768 dimensions.
// The provider caps a single embed call at 100 items; 50 leaves headroom.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "gemini-embedding-001",
		Dimensions:          768,
		DistanceMetric:      MetricCosine,
		DocumentInstruction: "task: retrieval document | text: ",
		QueryInstruction:    "task: retrieval query | query: ",
		BatchSize:           50,
		MaxBatchItems:       100,
	}
}
