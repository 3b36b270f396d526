package pdfrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // qdrant, redis, valkey, sqlite, memory
	url      string
	apiKey   string
	addrs    []string
	password string
	path     string

	collection       string
	vectorDimensions int
	batchSize        int
	chunkSize        int
	chunkOverlap     int
	defaultK         int
	maxK             int

	queryInstruction    string
	documentInstruction string

	embedder  Embedder
	generator Generator
	openai    *openAIConfig

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

type openAIConfig struct {
	baseURL         string
	apiKey          string
	embeddingModel  string
	generationModel string
}

// WithQdrant stores vectors in a Qdrant server reachable at url.
func WithQdrant(url, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "qdrant"
		c.url = url
		c.apiKey = apiKey
	})
}

// WithRedis stores vectors in Redis 8+ (or Redis Stack) using the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey stores vectors in Valkey with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite stores vectors in a SQLite database file. ":memory:" keeps it in process.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	})
}

// WithMemory keeps vectors in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithCollection sets the collection chunks are written to and searched in.
// Default: pdf_chunks.
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithVectorDimensions sets the embedding size. Default: 768.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithBatchSize sets how many chunks are embedded and uploaded per request. Default: 50.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithChunking sets the chunk window and overlap in words. Default: 400 and 50.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithQueryLimits sets the default and maximum number of chunks per question.
func WithQueryLimits(defaultK, maxK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = defaultK
		c.maxK = maxK
	})
}

// WithInstructions overrides the task hints prepended to questions and document chunks.
// They must differ.
func WithInstructions(query, document string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = query
		c.documentInstruction = document
	})
}

// WithEmbedder sets a custom embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets a custom generative model.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithOpenAI uses an OpenAI-compatible endpoint for both embeddings and generation
// with the default models (gemini-embedding-001, gemini-2.5-flash).
// WithEmbedder and WithGenerator take precedence.
func WithOpenAI(baseURL, apiKey string) Option {
	return WithOpenAIModels(baseURL, apiKey, "", "")
}

// WithOpenAIModels is WithOpenAI with explicit model names. Empty names keep the defaults.
func WithOpenAIModels(baseURL, apiKey, embeddingModel, generationModel string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &openAIConfig{
			baseURL:         baseURL,
			apiKey:          apiKey,
			embeddingModel:  embeddingModel,
			generationModel: generationModel,
		}
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
