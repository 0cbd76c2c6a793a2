package consultation

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/services"
	"github.com/upb/medrag/services/providers"
)

// GenerateInput is everything a generator may use
type GenerateInput struct {
	UserID      string
	Query       string
	Docs        []*models.DocumentMatch
	History     []Turn
	Profile     *UserProfile
	Temperature float64
}

// Generator produces the answer text for a consultation
type Generator interface {
	// ID is the agent identifier reported as agent_id
	ID() string

	// Retrieves reports whether documents should be fetched for this profile
	Retrieves(profile *UserProfile) bool

	// Generate produces the answer
	Generate(ctx context.Context, in *GenerateInput) (*Generation, error)
}

const templateModel = "BioBERT + GPT"

// TemplateGenerator answers with deterministic text and never calls a remote model
type TemplateGenerator struct{}

// NewTemplateGenerator creates the txagent generator
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) ID() string { return AgentTemplate }

func (g *TemplateGenerator) Retrieves(*UserProfile) bool { return true }

func (g *TemplateGenerator) Generate(ctx context.Context, in *GenerateInput) (*Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	switch {
	case len(in.Docs) > 0 && in.Profile != nil:
		text = fmt.Sprintf("Based on the medical documents in your library and your health profile, here's what I found regarding your question about '%s':\n\n"+
			"The relevant medical information suggests that you should consult with a healthcare professional who knows your medical history for proper evaluation and personalized treatment recommendations.", in.Query)
	case len(in.Docs) > 0:
		text = fmt.Sprintf("Based on the medical documents in your library, here's what I found regarding your question about '%s':\n\n"+
			"The relevant medical information suggests that you should consult with a healthcare professional for proper evaluation and treatment recommendations.", in.Query)
	case in.Profile != nil:
		text = fmt.Sprintf("I don't have specific medical documents that directly address your question about '%s'. "+
			"Given your health profile, I recommend consulting with a healthcare professional for accurate, personalized medical advice.", in.Query)
	default:
		text = fmt.Sprintf("I don't have specific medical documents that directly address your question about '%s'. "+
			"I recommend consulting with a healthcare professional for accurate medical advice.", in.Query)
	}

	return &Generation{
		Text:       text,
		Model:      templateModel,
		TokensUsed: len(strings.Fields(text)),
	}, nil
}

// LLMGenerator answers through a chat completion provider
type LLMGenerator struct {
	provider  providers.ChatProvider
	model     string
	maxTokens int
}

// NewLLMGenerator creates the openai generator. provider may be nil when no
// API key is configured; Generate then fails with ErrProviderNotConfigured.
func NewLLMGenerator(provider providers.ChatProvider, model string, maxTokens int) *LLMGenerator {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &LLMGenerator{provider: provider, model: model, maxTokens: maxTokens}
}

func (g *LLMGenerator) ID() string { return AgentLLM }

// Retrieves is false in patient mode, where the answer is driven by the profile
func (g *LLMGenerator) Retrieves(profile *UserProfile) bool { return profile == nil }

func (g *LLMGenerator) Generate(ctx context.Context, in *GenerateInput) (*Generation, error) {
	if g.provider == nil {
		return nil, services.ErrProviderNotConfigured
	}

	req := &providers.ChatRequest{
		Model:       g.model,
		Messages:    BuildMessages(BuildSystemPrompt(in.Profile, in.Docs), in.History, in.Query),
		MaxTokens:   g.maxTokens,
		Temperature: in.Temperature,
		User:        in.UserID,
	}

	resp, err := g.provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, services.WrapProcessing("Failed to generate response", err)
	}

	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return nil, services.WrapProcessing("Failed to generate response", fmt.Errorf("empty completion from %s", g.provider.Name()))
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}

	return &Generation{
		Text:       text,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
