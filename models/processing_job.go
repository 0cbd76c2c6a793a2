package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a processing job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProcessingJob records a request to process a document already in storage
type ProcessingJob struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	FilePath     string          `json:"file_path" db:"file_path"`
	Status       JobStatus       `json:"status" db:"status"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the ProcessingJob model
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

// NewProcessingJob creates a pending job
func NewProcessingJob(userID, filePath string, metadata json.RawMessage) *ProcessingJob {
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	now := time.Now()
	return &ProcessingJob{
		ID:        uuid.New(),
		UserID:    userID,
		FilePath:  filePath,
		Status:    JobStatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the job has finished
func (j *ProcessingJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
