// Package config loads Grantwell configuration from YAML with
// environment-variable overrides. Precedence, lowest to highest:
// built-in defaults, .grantwell.yaml in the working directory,
// GRANTWELL_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Grantwell configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Store      StoreConfig      `yaml:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watcher    WatcherConfig    `yaml:"watcher"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	// VectorWeight and KeywordWeight blend the two scoring legs and
	// must sum to 1.0.
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`

	// TopK is the default result count; MaxTopK caps requests.
	TopK    int `yaml:"top_k"`
	MaxTopK int `yaml:"max_top_k"`

	// PerDocCap limits chunks per source document.
	PerDocCap int `yaml:"per_doc_cap"`

	// RecencyHalfLifeDays and RecencyFloor control publication-date
	// decay.
	RecencyHalfLifeDays int     `yaml:"recency_half_life_days"`
	RecencyFloor        float64 `yaml:"recency_floor"`

	// VectorTimeout bounds the vector leg (e.g. "2s").
	VectorTimeout string `yaml:"vector_timeout"`

	// Expansion enables query expansion by default.
	Expansion bool `yaml:"expansion"`
}

// StoreConfig configures metadata and vector storage.
type StoreConfig struct {
	// SQLitePath is the metadata database path. Empty selects an
	// in-memory database.
	SQLitePath string `yaml:"sqlite_path"`

	// VectorBackend selects "hnsw" (embedded) or "qdrant" (remote).
	VectorBackend string `yaml:"vector_backend"`

	// Qdrant settings, used when VectorBackend is "qdrant".
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`

	// CacheSize is the document-metadata LRU capacity.
	CacheSize int `yaml:"cache_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects "ollama" or "static".
	Provider   string `yaml:"provider"`
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// RerankerConfig configures the optional cross-encoder reranker.
type RerankerConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// WatcherConfig configures the corpus mutation watcher.
type WatcherConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Debounce string `yaml:"debounce"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Search: SearchConfig{
			VectorWeight:        0.6,
			KeywordWeight:       0.4,
			TopK:                10,
			MaxTopK:             100,
			PerDocCap:           2,
			RecencyHalfLifeDays: 365,
			RecencyFloor:        0.2,
			VectorTimeout:       "2s",
			Expansion:           true,
		},
		Store: StoreConfig{
			SQLitePath:       defaultSQLitePath(),
			VectorBackend:    "hnsw",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			QdrantCollection: "grantwell_chunks",
			CacheSize:        4096,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Host:      "http://localhost:11434",
			Model:     "nomic-embed-text",
			BatchSize: 32,
		},
		Reranker: RerankerConfig{
			Enabled: false,
			Timeout: "10s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: "500ms",
		},
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".grantwell", "metadata.db")
	}
	return filepath.Join(home, ".grantwell", "metadata.db")
}

// Load builds the effective configuration for the given directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges .grantwell.yaml or .grantwell.yml when present.
// A missing file is not an error.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".grantwell.yaml", ".grantwell.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Weight zero is
// not a practical setting, so zero weights are treated as unset.
func (c *Config) mergeWith(other *Config) {
	if other.Search.VectorWeight != 0 {
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}
	if other.Search.PerDocCap != 0 {
		c.Search.PerDocCap = other.Search.PerDocCap
	}
	if other.Search.RecencyHalfLifeDays != 0 {
		c.Search.RecencyHalfLifeDays = other.Search.RecencyHalfLifeDays
	}
	if other.Search.RecencyFloor != 0 {
		c.Search.RecencyFloor = other.Search.RecencyFloor
	}
	if other.Search.VectorTimeout != "" {
		c.Search.VectorTimeout = other.Search.VectorTimeout
	}
	c.Search.Expansion = other.Search.Expansion || c.Search.Expansion

	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.VectorBackend != "" {
		c.Store.VectorBackend = other.Store.VectorBackend
	}
	if other.Store.QdrantHost != "" {
		c.Store.QdrantHost = other.Store.QdrantHost
	}
	if other.Store.QdrantPort != 0 {
		c.Store.QdrantPort = other.Store.QdrantPort
	}
	if other.Store.QdrantCollection != "" {
		c.Store.QdrantCollection = other.Store.QdrantCollection
	}
	if other.Store.CacheSize != 0 {
		c.Store.CacheSize = other.Store.CacheSize
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Host != "" {
		c.Embeddings.Host = other.Embeddings.Host
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	c.Reranker.Enabled = other.Reranker.Enabled || c.Reranker.Enabled
	if other.Reranker.URL != "" {
		c.Reranker.URL = other.Reranker.URL
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}

	c.Watcher.Enabled = other.Watcher.Enabled || c.Watcher.Enabled
	if other.Watcher.Debounce != "" {
		c.Watcher.Debounce = other.Watcher.Debounce
	}
}

// applyEnvOverrides applies GRANTWELL_* environment variables, the
// highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRANTWELL_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("GRANTWELL_KEYWORD_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
	if v := os.Getenv("GRANTWELL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("GRANTWELL_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("GRANTWELL_VECTOR_BACKEND"); v != "" {
		c.Store.VectorBackend = v
	}
	if v := os.Getenv("GRANTWELL_QDRANT_HOST"); v != "" {
		c.Store.QdrantHost = v
	}
	if v := os.Getenv("GRANTWELL_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GRANTWELL_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("GRANTWELL_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("GRANTWELL_RERANKER_URL"); v != "" {
		c.Reranker.URL = v
		c.Reranker.Enabled = true
	}
	if v := os.Getenv("GRANTWELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if math.Abs(c.Search.VectorWeight+c.Search.KeywordWeight-1) > 1e-6 {
		return fmt.Errorf("search weights must sum to 1.0, got %v",
			c.Search.VectorWeight+c.Search.KeywordWeight)
	}
	if c.Search.TopK <= 0 || c.Search.MaxTopK <= 0 {
		return fmt.Errorf("top_k and max_top_k must be positive")
	}
	if c.Search.TopK > c.Search.MaxTopK {
		return fmt.Errorf("top_k %d exceeds max_top_k %d", c.Search.TopK, c.Search.MaxTopK)
	}
	if c.Search.PerDocCap < 1 {
		return fmt.Errorf("per_doc_cap must be at least 1, got %d", c.Search.PerDocCap)
	}
	if c.Search.RecencyFloor <= 0 || c.Search.RecencyFloor >= 1 {
		return fmt.Errorf("recency_floor must be in (0,1), got %v", c.Search.RecencyFloor)
	}
	if c.Search.RecencyHalfLifeDays <= 0 {
		return fmt.Errorf("recency_half_life_days must be positive, got %d", c.Search.RecencyHalfLifeDays)
	}
	if _, err := time.ParseDuration(c.Search.VectorTimeout); err != nil {
		return fmt.Errorf("invalid vector_timeout: %w", err)
	}
	switch c.Store.VectorBackend {
	case "hnsw", "qdrant":
	default:
		return fmt.Errorf("unknown vector_backend %q (want hnsw or qdrant)", c.Store.VectorBackend)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("unknown embeddings provider %q (want ollama or static)", c.Embeddings.Provider)
	}
	if c.Reranker.Enabled && c.Reranker.URL == "" {
		return fmt.Errorf("reranker enabled but no url configured")
	}
	if c.Watcher.Enabled {
		if _, err := time.ParseDuration(c.Watcher.Debounce); err != nil {
			return fmt.Errorf("invalid watcher debounce: %w", err)
		}
	}
	return nil
}

// VectorTimeoutDuration parses the configured vector timeout.
func (c *Config) VectorTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Search.VectorTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// RecencyHalfLife returns the half-life as a duration.
func (c *Config) RecencyHalfLife() time.Duration {
	return time.Duration(c.Search.RecencyHalfLifeDays) * 24 * time.Hour
}
