// Package config provides configuration loading and structs for the Quarry server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and index files.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	LexicalPath      string `yaml:"lexical_index_path"`
	DensePath        string `yaml:"dense_index_path"`
	StructuredPath   string `yaml:"structured_index_path"`
	EnableStructured bool   `yaml:"enable_structured"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "mock"
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// ChunkingConfig holds the chunking policy.
type ChunkingConfig struct {
	TargetTokens   int    `yaml:"target_tokens"`
	OverlapTokens  int    `yaml:"overlap_tokens"`
	MaxTableTokens int    `yaml:"max_table_tokens"`
	TableSplit     string `yaml:"table_split"` // "atomic" or "row-split"
}

// RetrievalConfig holds fan-out and fusion settings.
type RetrievalConfig struct {
	// IndexWeights maps backend name to fusion weight. Missing backends get
	// weight 1.0 (equal weighting).
	IndexWeights        map[string]float64 `yaml:"index_weights"`
	CandidateMultiplier int                `yaml:"candidate_multiplier"`
	IndexTimeoutMillis  int                `yaml:"index_timeout_ms"`
	CollapseTables      *bool              `yaml:"collapse_tables"`
}

// CollapseTablesOrDefault reports whether sibling table chunks should be
// collapsed in results; defaults to true when unset.
func (r *RetrievalConfig) CollapseTablesOrDefault() bool {
	if r.CollapseTables != nil {
		return *r.CollapseTables
	}
	return true
}

// WatchConfig holds drop-directory ingestion settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.LexicalPath = expandPath(cfg.Storage.LexicalPath, configDir)
	cfg.Storage.DensePath = expandPath(cfg.Storage.DensePath, configDir)
	cfg.Storage.StructuredPath = expandPath(cfg.Storage.StructuredPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
