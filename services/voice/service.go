package voice

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/internal/storage"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/services"
)

// Voice is one entry of the voice catalogue
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Catalogue is the fixed set of voices offered to clients
var Catalogue = []Voice{
	{VoiceID: "default", Name: "Default Voice", Description: "Standard medical assistant voice", Category: "medical"},
	{VoiceID: "professional", Name: "Professional Voice", Description: "Professional medical consultation voice", Category: "medical"},
	{VoiceID: "calm", Name: "Calm Voice", Description: "Calming voice for patient reassurance", Category: "therapeutic"},
}

// Request asks for speech audio
type Request struct {
	UserID         string
	Text           string
	VoiceID        string
	ConsultationID string
}

// Result describes stored audio
type Result struct {
	Success          bool   `json:"success"`
	AudioURL         string `json:"audio_url"`
	FilePath         string `json:"file_path"`
	DurationEstimate int    `json:"duration_estimate"`
	VoiceID          string `json:"voice_id"`
}

// Config holds voice defaults
type Config struct {
	DefaultVoiceID string
	MaxTextLength  int
}

// Service generates speech, stores it and links it to consultations
type Service struct {
	synth         Synthesizer
	store         storage.Store
	consultations repositories.ConsultationRepository
	cfg           Config
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewService creates a voice service. synth is nil when no API key is
// configured; every call then fails with ErrVoiceNotConfigured.
func NewService(
	synth Synthesizer,
	store storage.Store,
	consultations repositories.ConsultationRepository,
	cfg Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Service {
	if cfg.DefaultVoiceID == "" {
		cfg.DefaultVoiceID = "default"
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 5000
	}
	return &Service{
		synth:         synth,
		store:         store,
		consultations: consultations,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Configured reports whether a text-to-speech backend is available
func (s *Service) Configured() bool {
	return s.synth != nil
}

// Voices returns the catalogue
func (s *Service) Voices() ([]Voice, error) {
	if !s.Configured() {
		return nil, services.ErrVoiceNotConfigured
	}
	out := make([]Voice, len(Catalogue))
	copy(out, Catalogue)
	return out, nil
}

// Generate synthesizes req.Text, uploads the mp3 and returns its public URL
func (s *Service) Generate(ctx context.Context, req *Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, services.ErrEmptyText
	}
	length := utf8.RuneCountInString(req.Text)
	if length > s.cfg.MaxTextLength {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("Text is too long for voice generation (max %d characters)", s.cfg.MaxTextLength), nil).
			WithDetail("length", length)
	}
	if !s.Configured() {
		return nil, services.ErrVoiceNotConfigured
	}

	var consultationID uuid.UUID
	if req.ConsultationID != "" {
		id, err := uuid.Parse(req.ConsultationID)
		if err != nil {
			return nil, services.Validation("consultation_id must be a valid UUID")
		}
		consultationID = id
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	logger := observability.LoggerFromContext(ctx, s.logger).With(
		zap.String("user_id", req.UserID),
		zap.String("voice_id", voiceID),
	)

	audio, err := s.synth.Synthesize(ctx, req.Text, voiceID)
	if err != nil {
		s.metrics.ObserveVoice("synthesis_failed")
		return nil, services.WrapProcessing("Failed to generate voice audio", err)
	}

	filePath := fmt.Sprintf("voice/%s/voice_%s_%d.mp3", req.UserID, req.UserID, s.now().Unix())
	if err := s.store.Upload(ctx, filePath, audio, "audio/mpeg"); err != nil {
		s.metrics.ObserveVoice("storage_failed")
		return nil, services.WrapProcessing("Failed to store voice audio", err)
	}
	audioURL := s.store.PublicURL(filePath)

	if consultationID != uuid.Nil {
		if err := s.consultations.UpdateVoiceURL(ctx, consultationID, req.UserID, audioURL); err != nil {
			logger.Warn("failed to attach audio to consultation",
				zap.String("consultation_id", consultationID.String()),
				zap.Error(err),
			)
		}
	}

	s.metrics.ObserveVoice("success")
	logger.Info("voice audio generated", zap.String("file_path", filePath), zap.Int("bytes", len(audio)))

	return &Result{
		Success:          true,
		AudioURL:         audioURL,
		FilePath:         filePath,
		DurationEstimate: durationEstimate(length),
		VoiceID:          voiceID,
	}, nil
}

// durationEstimate assumes roughly ten characters per second of speech
func durationEstimate(chars int) int {
	if d := chars / 10; d > 1 {
		return d
	}
	return 1
}
