package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/services/voice"
	"github.com/upb/medrag/utils"
)

// VoiceService turns text into stored speech audio
type VoiceService interface {
	Voices() ([]voice.Voice, error)
	Generate(ctx context.Context, req *voice.Request) (*voice.Result, error)
}

// GenerateVoiceRequest is the body of POST /api/generate-voice
type GenerateVoiceRequest struct {
	Text           string `json:"text"`
	VoiceID        string `json:"voice_id" validate:"omitempty,max=100"`
	ConsultationID string `json:"consultation_id"`
}

// VoicesResponse is the body of GET /api/voices
type VoicesResponse struct {
	Voices []voice.Voice `json:"voices"`
	Total  int           `json:"total"`
}

// VoiceHandler serves the voice endpoints
type VoiceHandler struct {
	service VoiceService
	logger  *zap.Logger
}

// NewVoiceHandler creates a new VoiceHandler
func NewVoiceHandler(service VoiceService, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/generate-voice
func (h *VoiceHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateVoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Generate(ctx, &voice.Request{
		UserID:         middleware.GetUserIDFromContext(ctx),
		Text:           req.Text,
		VoiceID:        req.VoiceID,
		ConsultationID: req.ConsultationID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleVoices handles GET /api/voices
func (h *VoiceHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.service.Voices()
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, VoicesResponse{
		Voices: voices,
		Total:  len(voices),
	})
}
