package consultation

import (
	"time"

	"github.com/google/uuid"
)

// Agent identifiers accepted as preferred_agent
const (
	AgentTemplate  = "txagent"
	AgentLLM       = "openai"
	AgentEmergency = "emergency_system"
)

// Turn is one prior message in the conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserProfile carries the patient context that switches prompts to patient mode
type UserProfile struct {
	Age         *int     `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
}

// Request is a single pipeline run
type Request struct {
	UserID      string
	Query       string
	History     []Turn
	TopK        int
	Temperature float64
	Agent       string
	Profile     *UserProfile
	SessionID   string
}

// PatientMode reports whether the request carries a user profile
func (r *Request) PatientMode() bool {
	return r.Profile != nil
}

// Source is a retrieved document as shown to the caller
type Source struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Similarity float64   `json:"similarity"`
	Excerpt    string    `json:"content_excerpt"`
}

// Generation is the output of a Generator
type Generation struct {
	Text       string
	Model      string
	TokensUsed int
}

// Result is the assembled outcome of a pipeline run
type Result struct {
	ConsultationID    uuid.UUID
	Text              string
	Sources           []Source
	ConfidenceScore   *float64
	Emergency         bool
	MatchedKeywords   []string
	Disclaimer        string
	UrgentCare        bool
	SuggestedAction   string
	FollowUpQuestions []string
	ProcessingTime    time.Duration
	SessionID         string
	AgentID           string
	Model             string
	TokensUsed        int
}

// ProcessingTimeMs returns the wall-clock duration in milliseconds
func (r *Result) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}
