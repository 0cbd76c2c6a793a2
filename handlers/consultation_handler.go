package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/services/consultation"
	"github.com/upb/medrag/utils"
)

const defaultTemperature = 0.7

// Consulter runs the retrieval and generation pipeline
type Consulter interface {
	Consult(ctx context.Context, req *consultation.Request) (*consultation.Result, error)
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Query          string              `json:"query"`
	History        []consultation.Turn `json:"history"`
	TopK           int                 `json:"top_k" validate:"omitempty,gte=1,lte=50"`
	Temperature    *float64            `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	Stream         bool                `json:"stream"`
	PreferredAgent string              `json:"preferred_agent"`
}

// ChatResponse is the body returned by POST /api/chat
type ChatResponse struct {
	Response       string                `json:"response"`
	Sources        []consultation.Source `json:"sources"`
	ProcessingTime int64                 `json:"processing_time"`
	Model          string                `json:"model"`
	TokensUsed     int                   `json:"tokens_used"`
	Status         string                `json:"status"`
	AgentID        string                `json:"agent_id"`
}

// ConsultationContext carries optional patient context
type ConsultationContext struct {
	UserProfile         *consultation.UserProfile `json:"user_profile"`
	ConversationHistory []consultation.Turn       `json:"conversation_history"`
}

// MedicalConsultationRequest is the body of POST /api/medical-consultation
type MedicalConsultationRequest struct {
	Query          string               `json:"query"`
	Context        *ConsultationContext `json:"context"`
	SessionID      string               `json:"session_id" validate:"omitempty,max=200"`
	PreferredAgent string               `json:"preferred_agent"`
}

// ConsultationResponse is the ConsultationResult wire shape
type ConsultationResponse struct {
	Response         ResponseBody    `json:"response"`
	Safety           SafetyBody      `json:"safety"`
	Recommendations  Recommendations `json:"recommendations"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	SessionID        string          `json:"session_id"`
	AgentID          string          `json:"agent_id"`
	ConsultationID   uuid.UUID       `json:"consultation_id"`
}

// ResponseBody holds the generated answer
type ResponseBody struct {
	Text            string                `json:"text"`
	Sources         []consultation.Source `json:"sources"`
	ConfidenceScore *float64              `json:"confidence_score"`
}

// SafetyBody holds the safety gate outcome
type SafetyBody struct {
	EmergencyDetected     bool   `json:"emergency_detected"`
	Disclaimer            string `json:"disclaimer"`
	UrgentCareRecommended bool   `json:"urgent_care_recommended"`
}

// Recommendations holds next steps for the caller
type Recommendations struct {
	SuggestedAction   string   `json:"suggested_action"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// ConsultationHandler serves the chat and medical consultation endpoints
type ConsultationHandler struct {
	service Consulter
	logger  *zap.Logger
}

// NewConsultationHandler creates a new ConsultationHandler
func NewConsultationHandler(service Consulter, logger *zap.Logger) *ConsultationHandler {
	return &ConsultationHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/chat
// Streaming is not supported; stream=true gets the same single response.
func (h *ConsultationHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Consult(ctx, &consultation.Request{
		UserID:      middleware.GetUserIDFromContext(ctx),
		Query:       req.Query,
		History:     req.History,
		TopK:        req.TopK,
		Temperature: temperatureOrDefault(req.Temperature),
		Agent:       req.PreferredAgent,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := ChatResponse{
		Response:       result.Text,
		Sources:        nonNilSources(result.Sources),
		ProcessingTime: result.ProcessingTimeMs(),
		Model:          result.Model,
		TokensUsed:     result.TokensUsed,
		Status:         "success",
		AgentID:        result.AgentID,
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleMedicalConsultation handles POST /api/medical-consultation
func (h *ConsultationHandler) HandleMedicalConsultation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req MedicalConsultationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	serviceReq := &consultation.Request{
		UserID:      middleware.GetUserIDFromContext(ctx),
		Query:       req.Query,
		Temperature: defaultTemperature,
		Agent:       req.PreferredAgent,
		SessionID:   req.SessionID,
	}
	if req.Context != nil {
		serviceReq.Profile = req.Context.UserProfile
		serviceReq.History = req.Context.ConversationHistory
	}

	result, err := h.service.Consult(ctx, serviceReq)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, toConsultationResponse(result)); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func toConsultationResponse(result *consultation.Result) ConsultationResponse {
	followUps := result.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}

	return ConsultationResponse{
		Response: ResponseBody{
			Text:            result.Text,
			Sources:         nonNilSources(result.Sources),
			ConfidenceScore: result.ConfidenceScore,
		},
		Safety: SafetyBody{
			EmergencyDetected:     result.Emergency,
			Disclaimer:            result.Disclaimer,
			UrgentCareRecommended: result.UrgentCare,
		},
		Recommendations: Recommendations{
			SuggestedAction:   result.SuggestedAction,
			FollowUpQuestions: followUps,
		},
		ProcessingTimeMs: result.ProcessingTimeMs(),
		SessionID:        result.SessionID,
		AgentID:          result.AgentID,
		ConsultationID:   result.ConsultationID,
	}
}

func nonNilSources(sources []consultation.Source) []consultation.Source {
	if sources == nil {
		return []consultation.Source{}
	}
	return sources
}

func temperatureOrDefault(t *float64) float64 {
	if t == nil {
		return defaultTemperature
	}
	return *t
}
