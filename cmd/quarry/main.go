// Package main is the Quarry CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/chunker"
	"github.com/quarrylabs/quarry/internal/chunkid"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embedding"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/index/dense"
	"github.com/quarrylabs/quarry/internal/index/lexical"
	"github.com/quarrylabs/quarry/internal/index/structured"
	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/internal/pipeline"
	"github.com/quarrylabs/quarry/internal/retriever"
	"github.com/quarrylabs/quarry/internal/server"
	"github.com/quarrylabs/quarry/internal/storage"
	"github.com/quarrylabs/quarry/internal/watcher"
	"github.com/quarrylabs/quarry/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/quarry/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, so "quarry server" run from a
// project directory picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "query":
		runQuery()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("quarry version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		watchSvc = newWatchService(components.Pipeline, cfg.Watch.Directories, cfg, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	srv := server.NewServer(components.Pipeline, components.Storage, watchSvc, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newWatchService wires a drop-directory watcher to the pipeline: settled
// files are ingested, removed files deleted by their path-derived ID.
func newWatchService(p *pipeline.Pipeline, dirs []string, cfg *config.Config, logger *zap.Logger) *watcher.Watcher {
	return watcher.New(
		dirs,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if _, _, err := p.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := p.DeleteDocument(context.Background(), chunkid.FileDocID(path)); err != nil {
				logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
}

// runWatch runs drop-directory ingestion without the HTTP server. Directories
// given as arguments override watch.directories from the config.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	dirs := cfg.Watch.Directories
	if fs.NArg() > 0 {
		dirs = fs.Args()
	}
	if len(dirs) == 0 {
		fmt.Println("Usage: quarry watch [flags] [directory ...]")
		fmt.Println("No directories given and watch.directories is empty in the config.")
		os.Exit(1)
	}

	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc := newWatchService(components.Pipeline, dirs, cfg, logger)
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExisting()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage access)")
	topK := fs.Int("top-k", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: quarry query [flags] <question>")
		os.Exit(1)
	}
	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryText == "" {
		fmt.Println("Usage: quarry query [flags] <question>")
		os.Exit(1)
	}
	query := &models.Query{Text: queryText, TopK: *topK}

	var response *models.RetrievalResponse
	if *serverURL != "" {
		// Use the HTTP API when the server is running; the bleve and SQLite
		// files are single-writer.
		response = queryViaHTTP(*serverURL, query)
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		response, err = components.Pipeline.Query(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		printResults(response)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printResults(resp *models.RetrievalResponse) {
	if len(resp.DegradedIndexes) > 0 {
		fmt.Printf("warning: degraded indexes: %s\n\n", strings.Join(resp.DegradedIndexes, ", "))
	}
	if resp.DroppedResults > 0 {
		fmt.Printf("warning: %d result(s) dropped during attribution\n\n", resp.DroppedResults)
	}
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, res := range resp.Results {
		c := res.Citation
		fmt.Printf("%d. [%s p.%d] score %.3f\n", i+1, c.DocumentID, c.PageNumber, res.FusedScore)
		if c.SectionTitle != "" {
			fmt.Printf("   section: %s\n", c.SectionTitle)
		}
		fmt.Printf("   %s\n", utils.Truncate(res.ChunkText, 300))
	}
	fmt.Printf("\n%d result(s) in %dms\n", len(resp.Results), resp.QueryTime)
}

func queryViaHTTP(serverURL string, query *models.Query) *models.RetrievalResponse {
	body, err := json.Marshal(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var response models.RetrievalResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	return &response
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: quarry ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n := 0
		err := filepath.WalkDir(path, func(p string, d iofs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if !matchExtension(p, cfg.Watch.Extensions) {
				return nil
			}
			docID, chunks, ierr := components.Pipeline.IngestFile(ctx, p)
			if ierr != nil {
				fmt.Printf("  failed: %s: %v\n", p, ierr)
				return nil
			}
			fmt.Printf("  %s -> %s (%d chunks)\n", p, docID, chunks)
			n++
			return nil
		})
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	docID, chunks, err := components.Pipeline.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s (%d chunks)\n", docID, chunks)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: quarry delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Pipeline.DeleteDocument(context.Background(), docID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Documents int64    `json:"documents"`
	Chunks    int64    `json:"chunks"`
	Indexes   []string `json:"indexes"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		st, err := components.Pipeline.Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{Documents: st.Documents, Chunks: st.Chunks, Indexes: st.Indexes}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:  %d\n", status.Documents)
		fmt.Printf("chunks:     %d\n", status.Chunks)
		fmt.Printf("indexes:    %s\n", strings.Join(status.Indexes, ", "))
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Backends []index.Backend
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Pipeline != nil {
		_ = c.Pipeline.Close()
		return
	}
	for _, b := range c.Backends {
		_ = b.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder := buildEmbedder(cfg, logger)

	lexicalIdx, err := lexical.New(cfg.Storage.LexicalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lexical index: %w", err)
	}
	denseIdx, err := dense.New(embedder, cfg.Storage.DensePath, dense.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dense index: %w", err)
	}
	backends := []index.Backend{lexicalIdx, denseIdx}
	if cfg.Storage.EnableStructured {
		structuredIdx, err := structured.New(cfg.Storage.StructuredPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize structured index: %w", err)
		}
		backends = append(backends, structuredIdx)
	}

	ch, err := chunker.New(chunker.Policy{
		TargetTokens:   cfg.Chunking.TargetTokens,
		OverlapTokens:  cfg.Chunking.OverlapTokens,
		MaxTableTokens: cfg.Chunking.MaxTableTokens,
		TableSplit:     cfg.Chunking.TableSplit,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	ret := retriever.New(backends, store, retriever.OptionsFromConfig(&cfg.Retrieval), logger)
	p := pipeline.New(store, backends, extract.NewExtractor(), ch, ret, logger)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Backends: backends,
		Pipeline: p,
	}, nil
}

// buildEmbedder picks the configured embedding provider. Without an API key
// the mock embedder keeps the rest of the system usable for development.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		oe, err := embedding.NewOpenAIEmbedderFromEnv(embedding.OpenAIConfig{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			MaxRetries: cfg.Embedding.MaxRetries,
		})
		if err != nil {
			logger.Warn("openai embedder unavailable, using mock", zap.Error(err))
			embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = oe
		}
	default:
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	return embedder
}

func printUsage() {
	fmt.Println(`quarry - retrieval engine for table-heavy documents

Usage:
  quarry server [flags]            Start the HTTP server
  quarry watch [flags] [dir ...]   Watch drop directories and ingest
  quarry query [flags] <question>  Query the corpus
  quarry ingest [flags] <path>     Ingest a file or directory
  quarry delete [flags] <id>       Delete a document
  quarry status [flags]            Show corpus and index status
  quarry version                   Show version
  quarry help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/quarry/config.yaml)
  --debug            Enable debug logging

Query Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --top-k int        Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Examples:
  quarry server
  quarry ingest reports/annual-2025.pdf
  quarry query "what was operating margin in Q3"
  quarry query --output json "net revenue 2024"
  quarry delete file:3a7bd3e2
  quarry status`)
}
