package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{Model: "bge-m3", Dimensions: 1024},
		Graph:     GraphConfig{InMemory: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memcached" }, "database.driver"},
		{"missing model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"missing dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"batch too large", func(c *Config) { c.Embedding.MaxBatchSize = 81 }, "embedding.max_batch_size"},
		{"too many attempts", func(c *Config) { c.Embedding.MaxAttempts = 4 }, "embedding.max_attempts"},
		{"unknown lang mode", func(c *Config) { c.LangFilter.Mode = "fuzzy" }, "langfilter.mode"},
		{"filter without languages", func(c *Config) { c.LangFilter.Enabled = true }, "langfilter.allowed"},
		{"unknown extractor", func(c *Config) { c.Extraction.Provider = "spacy" }, "extraction.provider"},
		{"llm without model", func(c *Config) { c.Extraction.Provider = "llm" }, "extraction.llm"},
		{"graph without path", func(c *Config) { c.Graph.InMemory = false }, "graph.path"},
		{"unknown ingest mode", func(c *Config) { c.Ingest.Mode = "eager" }, "ingest.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 30 {
		t.Errorf("expected ShutdownSec=30, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.MaxBatchSize != 80 {
		t.Errorf("expected MaxBatchSize=80, got %d", cfg.Embedding.MaxBatchSize)
	}
	if cfg.Embedding.MaxConcurrentBatches != 10 {
		t.Errorf("expected MaxConcurrentBatches=10, got %d", cfg.Embedding.MaxConcurrentBatches)
	}
	if cfg.Embedding.MaxAttempts != 1 {
		t.Errorf("expected MaxAttempts=1, got %d", cfg.Embedding.MaxAttempts)
	}
	if cfg.Dedup.TTLSec != 3600 {
		t.Errorf("expected TTLSec=3600, got %d", cfg.Dedup.TTLSec)
	}
	if cfg.LangFilter.Mode != "strict" {
		t.Errorf("expected Mode=strict, got %q", cfg.LangFilter.Mode)
	}
	if cfg.Extraction.Provider != "rules" {
		t.Errorf("expected Provider=rules, got %q", cfg.Extraction.Provider)
	}
	if cfg.Ingest.Mode != "streaming" || cfg.Ingest.Workers != 16 || cfg.Ingest.QueueSize != 1024 {
		t.Errorf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Query.MaxGraphResults != 50 {
		t.Errorf("expected MaxGraphResults=50, got %d", cfg.Query.MaxGraphResults)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 5, WriteTimeoutSec: 6, ShutdownSec: 7},
		Embedding: EmbeddingConfig{MaxBatchSize: 32, MaxAttempts: 3},
		Ingest:    IngestConfig{Mode: "deferred", Workers: 4},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 || cfg.HTTP.WriteTimeoutSec != 6 || cfg.HTTP.ShutdownSec != 7 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Embedding.MaxBatchSize != 32 || cfg.Embedding.MaxAttempts != 3 {
		t.Errorf("embedding overridden: %+v", cfg.Embedding)
	}
	if cfg.Ingest.Mode != "deferred" || cfg.Ingest.Workers != 4 {
		t.Errorf("ingest overridden: %+v", cfg.Ingest)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("VECGRAPH_TEST_ADDR", "valkey:6379")

	path := filepath.Join(t.TempDir(), "test.yaml")
	data := `
http:
  port: ${VECGRAPH_TEST_PORT:-9090}
database:
  addrs: ["${VECGRAPH_TEST_ADDR}"]
embedding:
  model: bge-m3
  dimensions: 1024
graph:
  in_memory: true
langfilter:
  enabled: true
  allowed: [en, de]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected default port 9090, got %d", cfg.HTTP.Port)
	}
	if len(cfg.Database.Addrs) != 1 || cfg.Database.Addrs[0] != "valkey:6379" {
		t.Errorf("unexpected addrs: %v", cfg.Database.Addrs)
	}
	if len(cfg.LangFilter.Allowed) != 2 {
		t.Errorf("unexpected allowed languages: %v", cfg.LangFilter.Allowed)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
