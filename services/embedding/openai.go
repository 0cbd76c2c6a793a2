package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/services/providers"
)

const openaiProvider = "openai"

// OpenAIConfig configures an OpenAI-compatible embedding endpoint
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Retry      RetryConfig
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API
type OpenAIEmbedder struct {
	client  *openai.Client
	cfg     OpenAIConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewOpenAIEmbedder creates an embedder. metrics may be nil.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *zap.Logger, metrics *observability.Metrics) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

func (e *OpenAIEmbedder) Name() string    { return openaiProvider }
func (e *OpenAIEmbedder) Model() string   { return e.cfg.Model }
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Embed returns the embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one request
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embed(ctx, "embed_batch", texts)
}

// Health verifies API availability via ListModels
func (e *OpenAIEmbedder) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if _, err := e.client.ListModels(ctx); err != nil {
		return parseEmbeddingError(err)
	}
	return nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, operation string, texts []string) ([][]float32, error) {
	start := time.Now()

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	var out [][]float32
	err := retryOperation(ctx, e.cfg.Retry, e.logger, operation, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		resp, err := e.client.CreateEmbeddings(callCtx, req)
		if err != nil {
			return parseEmbeddingError(err)
		}
		if len(resp.Data) != len(texts) {
			return providers.NewProviderError(openaiProvider, "BATCH_MISMATCH",
				fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), 0, false, nil)
		}

		out = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(out) {
				return providers.NewProviderError(openaiProvider, "BAD_INDEX", "embedding index out of range", 0, false, nil)
			}
			out[d.Index] = d.Embedding
		}
		return nil
	})

	e.metrics.ObserveEmbedding(openaiProvider, operation, time.Since(start), errorType(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(openaiProvider, "API_ERROR", apiErr.Message,
			apiErr.HTTPStatusCode, providers.RetryableStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewProviderError(openaiProvider, "REQUEST_ERROR", "embedding request failed",
			reqErr.HTTPStatusCode, providers.RetryableStatus(reqErr.HTTPStatusCode), err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return providers.NewProviderError(openaiProvider, "HTTP_ERROR", "embedding request failed", 0, true, err)
}
