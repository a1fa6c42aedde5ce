package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the vecgraph configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Dedup      DedupConfig      `yaml:"dedup"`
	LangFilter LangFilterConfig `yaml:"langfilter"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Graph      GraphConfig      `yaml:"graph"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Query      QueryConfig      `yaml:"query"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider and batching settings.
type EmbeddingConfig struct {
	Provider             string `yaml:"provider"`
	APIKey               string `yaml:"api_key"`
	BaseURL              string `yaml:"base_url"`
	Model                string `yaml:"model"`
	Dimensions           int    `yaml:"dimensions"`
	MaxBatchSize         int    `yaml:"max_batch_size"`
	MaxConcurrentBatches int    `yaml:"max_concurrent_batches"`
	MaxAttempts          int    `yaml:"max_attempts"` // 1 = no retry, at most 3
	Cache                bool   `yaml:"cache"`
}

// VectorConfig holds HNSW index settings.
type VectorConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// DedupConfig holds the processed-URL set settings.
type DedupConfig struct {
	TTLSec int `yaml:"ttl_sec"`
}

// LangFilterConfig holds language filter settings.
type LangFilterConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Allowed   []string `yaml:"allowed"`
	Mode      string   `yaml:"mode"` // strict, lenient
	MinLength int      `yaml:"min_length"`
}

// ExtractionConfig selects the entity extractor.
type ExtractionConfig struct {
	Provider string    `yaml:"provider"` // rules, llm
	LLM      LLMConfig `yaml:"llm"`
}

// LLMConfig holds the chat model settings for llm extraction.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Token   string `yaml:"token"`
}

// GraphConfig holds the graph store settings.
type GraphConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// IngestConfig holds ingestion controller settings.
type IngestConfig struct {
	Mode      string `yaml:"mode"` // streaming, deferred
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// LedgerConfig holds the crawl job ledger settings.
type LedgerConfig struct {
	Path string `yaml:"path"` // empty = in-memory
}

// QueryConfig holds hybrid query settings.
type QueryConfig struct {
	Rerank          bool `yaml:"rerank"`
	MaxGraphResults int  `yaml:"max_graph_results"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 80
	}
	if c.Embedding.MaxConcurrentBatches <= 0 {
		c.Embedding.MaxConcurrentBatches = 10
	}
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = 1
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}
	if c.Dedup.TTLSec <= 0 {
		c.Dedup.TTLSec = 3600
	}
	if c.LangFilter.Mode == "" {
		c.LangFilter.Mode = "strict"
	}
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = "rules"
	}
	if c.Ingest.Mode == "" {
		c.Ingest.Mode = "streaming"
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 16
	}
	if c.Ingest.QueueSize <= 0 {
		c.Ingest.QueueSize = 1024
	}
	if c.Query.MaxGraphResults <= 0 {
		c.Query.MaxGraphResults = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.MaxBatchSize > 80 {
		return fmt.Errorf("embedding.max_batch_size must be at most 80, got %d", c.Embedding.MaxBatchSize)
	}
	if c.Embedding.MaxAttempts > 3 {
		return fmt.Errorf("embedding.max_attempts must be at most 3, got %d", c.Embedding.MaxAttempts)
	}
	switch c.LangFilter.Mode {
	case "strict", "lenient":
	default:
		return fmt.Errorf("langfilter.mode must be \"strict\" or \"lenient\", got %q", c.LangFilter.Mode)
	}
	if c.LangFilter.Enabled && len(c.LangFilter.Allowed) == 0 {
		return errors.New("langfilter.allowed is required when the filter is enabled")
	}
	switch c.Extraction.Provider {
	case "rules":
	case "llm":
		if c.Extraction.LLM.BaseURL == "" || c.Extraction.LLM.Model == "" {
			return errors.New("extraction.llm.base_url and extraction.llm.model are required for the llm provider")
		}
	default:
		return fmt.Errorf("extraction.provider must be \"rules\" or \"llm\", got %q", c.Extraction.Provider)
	}
	if !c.Graph.InMemory && c.Graph.Path == "" {
		return errors.New("graph.path is required unless graph.in_memory is set")
	}
	switch c.Ingest.Mode {
	case "streaming", "deferred":
	default:
		return fmt.Errorf("ingest.mode must be \"streaming\" or \"deferred\", got %q", c.Ingest.Mode)
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
