package voice

import (
	"context"
	"errors"
	"time"

	"github.com/haguro/elevenlabs-go"

	"github.com/upb/medrag/services/providers"
)

const elevenLabsProvider = "elevenlabs"

// Synthesizer converts text to audio bytes
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ElevenLabsConfig configures the text-to-speech client
type ElevenLabsConfig struct {
	APIKey  string
	ModelID string
	Timeout time.Duration
}

type speechFunc func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error)

// ElevenLabsClient calls the ElevenLabs text-to-speech API
type ElevenLabsClient struct {
	cfg    ElevenLabsConfig
	speech speechFunc
}

// NewElevenLabsClient creates a client
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &ElevenLabsClient{
		cfg: cfg,
		speech: func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error) {
			// the client binds its context at construction
			return elevenlabs.NewClient(ctx, cfg.APIKey, cfg.Timeout).TextToSpeech(voiceID, req)
		},
	}
}

// Synthesize returns mp3 audio for text spoken by voiceID
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	audio, err := c.speech(ctx, voiceID, elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
	})
	if err != nil {
		return nil, classifySpeechError(err)
	}
	if len(audio) == 0 {
		return nil, providers.NewProviderError(elevenLabsProvider, "EMPTY_AUDIO", "text-to-speech returned no audio", 0, false, nil)
	}
	return audio, nil
}

// classifySpeechError marks auth and request validation failures as final;
// transport errors, rate limits and 5xx responses stay retryable
func classifySpeechError(err error) error {
	var apiErr *elevenlabs.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(elevenLabsProvider, "API_ERROR", "text-to-speech request rejected", 0, false, err)
	}
	var validationErr *elevenlabs.ValidationError
	if errors.As(err, &validationErr) {
		return providers.NewProviderError(elevenLabsProvider, "VALIDATION_ERROR", "text-to-speech request invalid", 0, false, err)
	}
	return providers.NewProviderError(elevenLabsProvider, "HTTP_ERROR", "text-to-speech request failed", 0, true, err)
}
