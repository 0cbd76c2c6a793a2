package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/upb/medrag/models"
)

// DocumentRepository handles document data operations
type DocumentRepository interface {
	// CreatePending inserts a document in pending status
	CreatePending(ctx context.Context, doc *models.Document) error

	// MarkReady flips a pending document to ready and records its storage path
	MarkReady(ctx context.Context, id uuid.UUID, storagePath string) error

	// Delete removes a document owned by userID
	Delete(ctx context.Context, id uuid.UUID, userID string) error

	// GetByID retrieves a document owned by userID
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.Document, error)

	// ListByUser retrieves a user's ready documents, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error)

	// Match returns the user's ready documents whose cosine similarity to
	// embedding is at least threshold, best first, at most limit rows
	Match(ctx context.Context, embedding []float32, threshold float64, limit int, userID string) ([]*models.DocumentMatch, error)
}

// JobRepository handles processing job data operations
type JobRepository interface {
	// Create inserts a new job
	Create(ctx context.Context, job *models.ProcessingJob) error

	// GetByID retrieves a job owned by userID
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.ProcessingJob, error)
}

// ConsultationRepository handles consultation audit records
type ConsultationRepository interface {
	// Insert inserts a consultation record
	Insert(ctx context.Context, c *models.Consultation) error

	// UpdateVoiceURL attaches generated audio to a consultation owned by userID
	UpdateVoiceURL(ctx context.Context, id uuid.UUID, userID, audioURL string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Documents     DocumentRepository
	Jobs          JobRepository
	Consultations ConsultationRepository
}
