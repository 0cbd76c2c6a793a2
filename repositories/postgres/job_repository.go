package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/services"
)

// JobRepository implements the repositories.JobRepository interface
type JobRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewJobRepository creates a new processing job repository
func NewJobRepository(db *DB, logger *zap.Logger) repositories.JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new job
func (r *JobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (
			id, user_id, file_path, status, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.FilePath,
		job.Status,
		[]byte(job.Metadata),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert processing job: %w", err)
	}

	r.logger.Debug("processing job created", zap.String("id", job.ID.String()), zap.String("file_path", job.FilePath))
	return nil
}

// GetByID retrieves a job owned by userID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.ProcessingJob, error) {
	query := `
		SELECT id, user_id, file_path, status, metadata, error_message, created_at, updated_at
		FROM processing_jobs
		WHERE id = $1 AND user_id = $2
	`

	job := &models.ProcessingJob{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&job.ID,
		&job.UserID,
		&job.FilePath,
		&job.Status,
		&metadata,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get processing job: %w", err)
	}
	job.Metadata = metadata
	return job, nil
}
