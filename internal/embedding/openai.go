package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the OpenAI model used for embeddings.
	DefaultModel = openai.AdaEmbeddingV2
	// DefaultDimensions is the embedding dimension of ada-002.
	DefaultDimensions = 1536

	defaultMaxRetries   = 3
	initialRetryBackoff = 500 * time.Millisecond
)

// ErrNoAPIKey is returned when the OpenAI API key is not set.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
// Failed calls are retried with exponential backoff up to maxRetries before
// the error is surfaced; callers decide whether that degrades or aborts.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxRetries int
}

// OpenAIConfig configures an OpenAIEmbedder. Zero values take defaults.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

// NewOpenAIEmbedder creates an embedder with explicit configuration.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(cfg.APIKey),
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
	}
}

// NewOpenAIEmbedderFromEnv creates an embedder using OPENAI_API_KEY.
func NewOpenAIEmbedderFromEnv(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewOpenAIEmbedder(cfg), nil
}

// Embed returns the embedding for text, retrying transient failures.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts in one API call, retrying transient failures
// with exponential backoff.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := initialRetryBackoff
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: e.model,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
			continue
		}
		out := make([][]float32, len(texts))
		for i, d := range resp.Data {
			if len(d.Embedding) != e.dimensions {
				return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(d.Embedding), e.dimensions)
			}
			out[i] = d.Embedding
		}
		return out, nil
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries, lastErr)
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for the API client.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
