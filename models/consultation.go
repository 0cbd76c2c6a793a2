package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ConsultationOutcome is the terminal state of a pipeline run
type ConsultationOutcome string

const (
	ConsultationOutcomeCompleted ConsultationOutcome = "completed"
	ConsultationOutcomeEmergency ConsultationOutcome = "emergency"
	ConsultationOutcomeFailed    ConsultationOutcome = "failed"
)

// Consultation is the audit record of one chat or consultation request
type Consultation struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	UserID            string              `json:"user_id" db:"user_id"`
	SessionID         string              `json:"session_id" db:"session_id"`
	Query             string              `json:"query" db:"query"`
	Response          string              `json:"response" db:"response"`
	Sources           json.RawMessage     `json:"sources" db:"sources"`
	AgentID           string              `json:"agent_id" db:"agent_id"`
	Outcome           ConsultationOutcome `json:"outcome" db:"outcome"`
	EmergencyDetected bool                `json:"emergency_detected" db:"emergency_detected"`
	ProcessingTimeMs  int64               `json:"processing_time_ms" db:"processing_time_ms"`
	ErrorMessage      *string             `json:"error_message,omitempty" db:"error_message"`
	VoiceAudioURL     *string             `json:"voice_audio_url,omitempty" db:"voice_audio_url"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Consultation model
func (Consultation) TableName() string {
	return "medical_consultations"
}

// NewConsultation creates a consultation record with a fresh id
func NewConsultation(userID, sessionID, query string) *Consultation {
	return &Consultation{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Query:     query,
		Sources:   json.RawMessage("[]"),
		CreatedAt: time.Now(),
	}
}

// WithError marks the consultation as failed
func (c *Consultation) WithError(msg string) *Consultation {
	c.Outcome = ConsultationOutcomeFailed
	c.ErrorMessage = &msg
	return c
}
