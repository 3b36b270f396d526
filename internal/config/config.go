package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Vector store drivers.
const (
	DriverQdrant = "qdrant"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds the pdfrag service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
	UploadDir       string `yaml:"upload_dir"` // empty = os.TempDir()
}

// VectorStoreConfig selects and configures the vector database backend.
type VectorStoreConfig struct {
	Driver           string   `yaml:"driver"` // qdrant, redis, valkey, sqlite, memory
	URL              string   `yaml:"url"`    // qdrant
	APIKey           string   `yaml:"api_key"`
	Addrs            []string `yaml:"addrs"` // redis, valkey
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite
	Collection       string   `yaml:"collection"`
	Dimensions       int      `yaml:"dimensions"`
	BatchSize        int      `yaml:"batch_size"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingCacheConfig holds embedding cache settings.
type EmbeddingCacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string               `yaml:"api_key"`
	BaseURL             string               `yaml:"base_url"`
	Model               string               `yaml:"model"`
	Dimensions          int                  `yaml:"dimensions"`
	BatchSize           int                  `yaml:"batch_size"`
	MaxBatchItems       int                  `yaml:"max_batch_items"`
	QueryInstruction    string               `yaml:"query_instruction"`
	DocumentInstruction string               `yaml:"document_instruction"`
	TimeoutSec          int                  `yaml:"timeout_sec"`
	MaxRetries          int                  `yaml:"max_retries"`
	Cache               EmbeddingCacheConfig `yaml:"cache"`
}

// GenerationConfig holds generative model settings.
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float32 `yaml:"temperature"`
}

// ChunkingConfig holds chunker settings in words.
type ChunkingConfig struct {
	Size int `yaml:"size"`
	// Overlap is nil when not configured; zero is a valid overlap.
	Overlap *int `yaml:"overlap"`
}

// OverlapWords returns the configured overlap, 0 when unset.
func (c ChunkingConfig) OverlapWords() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// RetrievalConfig holds query limits.
type RetrievalConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// VectorConfig converts embedding settings into the domain vector configuration.
func (c *Config) VectorConfig() domain.VectorConfig {
	return domain.VectorConfig{
		Model:               c.Embedding.Model,
		Dimensions:          c.Embedding.Dimensions,
		DistanceMetric:      domain.MetricCosine,
		DocumentInstruction: c.Embedding.DocumentInstruction,
		QueryInstruction:    c.Embedding.QueryInstruction,
		BatchSize:           c.Embedding.BatchSize,
		MaxBatchItems:       c.Embedding.MaxBatchItems,
	}
}

// Timeout returns the vector store call timeout.
func (c VectorStoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Timeout returns the embedding call timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Timeout returns the generation call timeout.
func (c GenerationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, substitutes env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
// Credentials and endpoints never get defaults.
func (c *Config) ApplyDefaults() {
	vec := domain.DefaultVectorConfig()

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = DriverQdrant
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "pdf_chunks"
	}
	if c.VectorStore.BatchSize <= 0 {
		c.VectorStore.BatchSize = vec.BatchSize
	}
	if c.VectorStore.TimeoutSec <= 0 {
		c.VectorStore.TimeoutSec = 30
	}
	if c.VectorStore.ReadinessTimeout <= 0 {
		c.VectorStore.ReadinessTimeout = 10
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vec.Dimensions
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = vec.BatchSize
	}
	if c.Embedding.MaxBatchItems <= 0 {
		c.Embedding.MaxBatchItems = vec.MaxBatchItems
	}
	if c.Embedding.QueryInstruction == "" {
		c.Embedding.QueryInstruction = vec.QueryInstruction
	}
	if c.Embedding.DocumentInstruction == "" {
		c.Embedding.DocumentInstruction = vec.DocumentInstruction
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3 // negative disables retries
	}
	if c.Embedding.Cache.TTLHours <= 0 {
		c.Embedding.Cache.TTLHours = 24 * 7
	}
	// Vector size follows the embedding model unless set explicitly.
	if c.VectorStore.Dimensions <= 0 {
		c.VectorStore.Dimensions = c.Embedding.Dimensions
	}

	if c.Generation.Model == "" {
		c.Generation.Model = "gemini-2.5-flash"
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = 3
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = 400
	}
	if c.Chunking.Overlap == nil {
		overlap := 50
		c.Chunking.Overlap = &overlap
	}

	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 5
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 50
	}
}

// Validate checks the configuration for correctness.
// Every failure wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return domain.ConfigError("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := c.validateVectorStore(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if c.Generation.APIKey == "" {
		return domain.ConfigError("generation.api_key is required")
	}
	if c.Generation.BaseURL == "" {
		return domain.ConfigError("generation.base_url is required")
	}
	if c.Chunking.Size <= 0 {
		return domain.ConfigError("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if overlap := c.Chunking.OverlapWords(); overlap < 0 || overlap >= c.Chunking.Size {
		return domain.ConfigError(
			"chunking.overlap must be in [0, size), got overlap=%d size=%d",
			overlap, c.Chunking.Size,
		)
	}
	if c.Retrieval.DefaultK > c.Retrieval.MaxK {
		return domain.ConfigError(
			"retrieval.default_k (%d) exceeds retrieval.max_k (%d)",
			c.Retrieval.DefaultK, c.Retrieval.MaxK,
		)
	}
	return nil
}

func (c *Config) validateVectorStore() error {
	vs := c.VectorStore
	switch vs.Driver {
	case DriverQdrant:
		if vs.URL == "" {
			return domain.ConfigError("vector_store.url is required for driver %q", vs.Driver)
		}
	case DriverRedis, DriverValkey:
		if len(vs.Addrs) == 0 {
			return domain.ConfigError("vector_store.addrs is required for driver %q", vs.Driver)
		}
	case DriverSQLite:
		if vs.Path == "" {
			return domain.ConfigError("vector_store.path is required for driver %q", vs.Driver)
		}
	case DriverMemory:
	default:
		return domain.ConfigError("vector_store.driver %q is not supported", vs.Driver)
	}
	if vs.Dimensions != c.Embedding.Dimensions {
		return domain.ConfigError(
			"vector_store.dimensions (%d) must match embedding.dimensions (%d)",
			vs.Dimensions, c.Embedding.Dimensions,
		)
	}
	if vs.BatchSize > c.Embedding.MaxBatchItems {
		return domain.ConfigError(
			"vector_store.batch_size (%d) exceeds embedding.max_batch_items (%d)",
			vs.BatchSize, c.Embedding.MaxBatchItems,
		)
	}
	if c.Embedding.Cache.Enabled && vs.Driver != DriverRedis && vs.Driver != DriverValkey {
		return domain.ConfigError("embedding.cache requires a redis or valkey vector store")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if e.APIKey == "" {
		return domain.ConfigError("embedding.api_key is required")
	}
	if e.BaseURL == "" {
		return domain.ConfigError("embedding.base_url is required")
	}
	if e.BatchSize > e.MaxBatchItems {
		return domain.ConfigError(
			"embedding.batch_size (%d) exceeds embedding.max_batch_items (%d)",
			e.BatchSize, e.MaxBatchItems,
		)
	}
	if strings.TrimSpace(e.QueryInstruction) == strings.TrimSpace(e.DocumentInstruction) {
		return domain.ConfigError("embedding.query_instruction and embedding.document_instruction must differ")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
