package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/services/providers"
)

const runpodProvider = "runpod"

// RunPodConfig configures the BioBERT embedding service client
type RunPodConfig struct {
	URL          string
	APIKey       string
	Model        string
	Dimensions   int
	MaxLength    int
	BatchSize    int
	Timeout      time.Duration
	BatchTimeout time.Duration
	Retry        RetryConfig
}

// RunPodClient talks to the self-hosted embedding service over HTTP
type RunPodClient struct {
	cfg        RunPodConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

type embedRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type batchRequest struct {
	Texts     []string `json:"texts"`
	BatchSize int      `json:"batch_size"`
}

type batchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewRunPodClient creates a client. metrics may be nil.
func NewRunPodClient(cfg RunPodConfig, logger *zap.Logger, metrics *observability.Metrics) *RunPodClient {
	if cfg.Model == "" {
		cfg.Model = "BioBERT"
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 8
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &RunPodClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics,
	}
}

func (c *RunPodClient) Name() string    { return runpodProvider }
func (c *RunPodClient) Model() string   { return c.cfg.Model }
func (c *RunPodClient) Dimensions() int { return c.cfg.Dimensions }

// Embed returns the embedding for a single text, retrying transient failures
func (c *RunPodClient) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	var vec []float32
	err := retryOperation(ctx, c.cfg.Retry, c.logger, "embed", func(ctx context.Context) error {
		var resp embedResponse
		if err := c.post(ctx, "/embed", c.cfg.Timeout, embedRequest{Text: text, MaxLength: c.cfg.MaxLength}, &resp); err != nil {
			return err
		}
		if err := c.checkDimensions(resp.Embedding); err != nil {
			return err
		}
		vec = resp.Embedding
		return nil
	})

	c.metrics.ObserveEmbedding(runpodProvider, "embed", time.Since(start), errorType(err))
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds several texts in one call. If the batch call fails the
// texts are embedded one by one, each with its own retries.
func (c *RunPodClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()

	var vecs [][]float32
	err := retryOperation(ctx, c.cfg.Retry, c.logger, "embed_batch", func(ctx context.Context) error {
		var resp batchResponse
		if err := c.post(ctx, "/embed_batch", c.cfg.BatchTimeout, batchRequest{Texts: texts, BatchSize: c.cfg.BatchSize}, &resp); err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return providers.NewProviderError(runpodProvider, "BATCH_MISMATCH",
				fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)), 0, false, nil)
		}
		for _, v := range resp.Embeddings {
			if err := c.checkDimensions(v); err != nil {
				return err
			}
		}
		vecs = resp.Embeddings
		return nil
	})
	c.metrics.ObserveEmbedding(runpodProvider, "embed_batch", time.Since(start), errorType(err))
	if err == nil {
		return vecs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.Warn("batch embedding failed, falling back to sequential calls",
		zap.Int("texts", len(texts)),
		zap.Error(err),
	)

	vecs = make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Health calls the service health endpoint
func (c *RunPodClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.NewProviderError(runpodProvider, "HTTP_ERROR", "health check failed", 0, true, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return providers.NewProviderError(runpodProvider, "UNHEALTHY",
			fmt.Sprintf("health check returned status %d", resp.StatusCode), resp.StatusCode, false, nil)
	}
	return nil
}

func (c *RunPodClient) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// post sends a JSON request bounded by timeout and decodes the JSON reply
func (c *RunPodClient) post(ctx context.Context, path string, timeout time.Duration, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the caller's own cancellation is final; our per-call deadline is not
		retryable := ctx.Err() == nil
		return providers.NewProviderError(runpodProvider, "HTTP_ERROR", "embedding request failed", 0, retryable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.NewProviderError(runpodProvider, "READ_ERROR", "failed to read response", resp.StatusCode, true, err)
	}

	if resp.StatusCode != http.StatusOK {
		return providers.NewProviderError(runpodProvider, "API_ERROR",
			fmt.Sprintf("embedding service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			resp.StatusCode, providers.RetryableStatus(resp.StatusCode), nil)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return providers.NewProviderError(runpodProvider, "DECODE_ERROR", "invalid embedding response", resp.StatusCode, false, err)
	}
	return nil
}

func (c *RunPodClient) checkDimensions(vec []float32) error {
	if len(vec) == 0 {
		return providers.NewProviderError(runpodProvider, "EMPTY_EMBEDDING", "embedding service returned an empty vector", 0, false, nil)
	}
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		return providers.NewProviderError(runpodProvider, "DIMENSION_MISMATCH",
			fmt.Sprintf("expected %d dimensions, got %d", c.cfg.Dimensions, len(vec)), 0, false, nil)
	}
	return nil
}

// errorType classifies an error for the metrics label
func errorType(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode >= 500:
			return "http_5xx"
		case provErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case provErr.StatusCode >= 400:
			return "http_4xx"
		case provErr.Code == "HTTP_ERROR":
			return "transport"
		default:
			return "invalid_response"
		}
	}
	return "unknown"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
