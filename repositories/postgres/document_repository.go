package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/services"
)

// DocumentRepository implements the repositories.DocumentRepository interface
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePending inserts a document in pending status
func (r *DocumentRepository) CreatePending(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, user_id, filename, content, metadata, embedding, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6::vector, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Filename,
		doc.Content,
		[]byte(doc.Metadata),
		pgvector.NewVector(doc.Embedding),
		models.DocumentStatusPending,
		doc.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("document %s already exists: %w", doc.ID, err)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	doc.Status = models.DocumentStatusPending
	r.logger.Debug("pending document inserted", zap.String("id", doc.ID.String()))
	return nil
}

// MarkReady flips a pending document to ready
func (r *DocumentRepository) MarkReady(ctx context.Context, id uuid.UUID, storagePath string) error {
	query := `
		UPDATE documents
		SET status = $1, storage_path = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		models.DocumentStatusReady,
		storagePath,
		id,
		models.DocumentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pending document %s: %w", id, services.ErrDocumentNotFound)
	}
	return nil
}

// Delete removes a document owned by userID
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	query := `DELETE FROM documents WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

// GetByID retrieves a document owned by userID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.Document, error) {
	query := `
		SELECT id, user_id, filename, content, metadata, COALESCE(storage_path, ''), status, created_at
		FROM documents
		WHERE id = $1 AND user_id = $2
	`

	doc := &models.Document{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Filename,
		&doc.Content,
		&metadata,
		&doc.StoragePath,
		&doc.Status,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Metadata = metadata
	return doc, nil
}

// ListByUser retrieves a user's ready documents, newest first
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error) {
	query := `
		SELECT id, user_id, filename, content, metadata, COALESCE(storage_path, ''), status, created_at
		FROM documents
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, userID, models.DocumentStatusReady, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc := &models.Document{}
		var metadata []byte
		if err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Filename,
			&doc.Content,
			&metadata,
			&doc.StoragePath,
			&doc.Status,
			&doc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Metadata = metadata
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Match runs the cosine similarity search over the caller's ready documents
func (r *DocumentRepository) Match(ctx context.Context, embedding []float32, threshold float64, limit int, userID string) ([]*models.DocumentMatch, error) {
	query := `
		SELECT id, filename, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
		FROM documents
		WHERE user_id = $2
		  AND status = $3
		  AND 1 - (embedding <=> $1::vector) >= $4
		ORDER BY embedding <=> $1::vector
		LIMIT $5
	`

	rows, err := r.db.QueryContext(ctx, query,
		pgvector.NewVector(embedding),
		userID,
		models.DocumentStatusReady,
		threshold,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.DocumentMatch, 0, limit)
	for rows.Next() {
		m := &models.DocumentMatch{}
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.Filename, &m.Content, &metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Metadata = metadata
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	r.logger.Debug("similarity search completed",
		zap.String("user_id", userID),
		zap.Int("matches", len(matches)),
		zap.Float64("threshold", threshold),
	)
	return matches, nil
}
