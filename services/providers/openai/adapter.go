package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/upb/medrag/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	providerName   = "openai"
)

// OpenAIAdapter implements providers.ChatProvider on top of go-openai.
// It works against any OpenAI-compatible endpoint via BaseURL.
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client *openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	clientCfg.BaseURL = config.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIAdapter{
		config: config,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// Model returns the model used when a request does not name one
func (a *OpenAIAdapter) Model() string {
	return a.config.Model
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, a.buildOpenAIRequest(req))
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(providerName, "EMPTY_RESPONSE", "chat completion returned no choices", 0, false, nil)
	}

	return convertToUnifiedResponse(resp, time.Since(startTime)), nil
}

// buildOpenAIRequest converts unified request to OpenAI format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		User:        req.User,
	}
	for i, msg := range req.Messages {
		out.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return out
}

// convertToUnifiedResponse converts OpenAI response to unified format
func convertToUnifiedResponse(resp openai.ChatCompletionResponse, latency time.Duration) *providers.ChatResponse {
	out := &providers.ChatResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: providerName,
		Choices:  make([]providers.Choice, len(resp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: latency,
	}

	for i, choice := range resp.Choices {
		out.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		}
	}
	return out
}

// parseAPIError maps go-openai errors onto ProviderError with a retry classification
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(providerName, apiErr.Type, apiErr.Message,
			apiErr.HTTPStatusCode, providers.RetryableStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewProviderError(providerName, "REQUEST_ERROR", "chat completion request failed",
			reqErr.HTTPStatusCode, providers.RetryableStatus(reqErr.HTTPStatusCode), err)
	}

	if errors.Is(err, context.Canceled) {
		return providers.NewProviderError(providerName, "CANCELED", "request canceled", 0, false, err)
	}

	// transport failures and deadline overruns
	return providers.NewProviderError(providerName, "HTTP_ERROR", "HTTP request failed", 0, true, err)
}
