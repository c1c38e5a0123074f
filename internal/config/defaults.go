package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/quarry/data/db/documents.db"
	}
	if cfg.Storage.LexicalPath == "" {
		cfg.Storage.LexicalPath = "/usr/local/var/quarry/data/indices/lexical"
	}
	if cfg.Storage.DensePath == "" {
		cfg.Storage.DensePath = "/usr/local/var/quarry/data/indices/dense.bin"
	}
	if cfg.Storage.StructuredPath == "" {
		cfg.Storage.StructuredPath = "/usr/local/var/quarry/data/indices/structured.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Chunking.TargetTokens == 0 {
		cfg.Chunking.TargetTokens = 512
	}
	if cfg.Chunking.OverlapTokens == 0 {
		cfg.Chunking.OverlapTokens = 50
	}
	if cfg.Chunking.MaxTableTokens == 0 {
		cfg.Chunking.MaxTableTokens = 1024
	}
	if cfg.Chunking.TableSplit == "" {
		cfg.Chunking.TableSplit = "row-split"
	}
	if cfg.Retrieval.CandidateMultiplier == 0 {
		cfg.Retrieval.CandidateMultiplier = 5
	}
	if cfg.Retrieval.IndexTimeoutMillis == 0 {
		cfg.Retrieval.IndexTimeoutMillis = 5000
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".xlsx", ".docx", ".txt", ".md"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
