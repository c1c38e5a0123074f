package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug flag lost")
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "localhost" {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Chunking.TargetTokens != 512 || cfg.Chunking.OverlapTokens != 50 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Chunking.TableSplit != "row-split" {
		t.Errorf("table split default = %q", cfg.Chunking.TableSplit)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding defaults = %+v", cfg.Embedding)
	}
	if cfg.Retrieval.CandidateMultiplier != 5 || cfg.Retrieval.IndexTimeoutMillis != 5000 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
chunking:
  target_tokens: 256
  table_split: atomic
retrieval:
  index_weights:
    lexical: 2.0
    dense: 1.0
  collapse_tables: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Chunking.TargetTokens != 256 || cfg.Chunking.TableSplit != "atomic" {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.IndexWeights["lexical"] != 2.0 {
		t.Errorf("weights = %v", cfg.Retrieval.IndexWeights)
	}
	if cfg.Retrieval.CollapseTablesOrDefault() {
		t.Error("explicit collapse_tables: false ignored")
	}
}

func TestCollapseTablesDefaultsTrue(t *testing.T) {
	var r RetrievalConfig
	if !r.CollapseTablesOrDefault() {
		t.Error("unset collapse_tables should default to true")
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./data/documents.db
watch:
  directories: ["./drop"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/documents.db") {
		t.Errorf("database path = %q", cfg.Storage.DatabasePath)
	}
	if cfg.Watch.Directories[0] != filepath.Join(dir, "drop") {
		t.Errorf("watch dir = %q", cfg.Watch.Directories[0])
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("watch recursive should default to true when directories are set")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Watch.Directories = []string{"/data/drop"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != "/data/drop" {
		t.Errorf("watch dirs = %v", loaded.Watch.Directories)
	}
}
