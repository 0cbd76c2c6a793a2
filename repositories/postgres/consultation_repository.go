package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
)

// ConsultationRepository implements the repositories.ConsultationRepository interface
type ConsultationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *DB, logger *zap.Logger) repositories.ConsultationRepository {
	return &ConsultationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a consultation record
func (r *ConsultationRepository) Insert(ctx context.Context, c *models.Consultation) error {
	query := `
		INSERT INTO medical_consultations (
			id, user_id, session_id, query, response, sources, agent_id, outcome,
			emergency_detected, processing_time_ms, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.SessionID,
		c.Query,
		c.Response,
		[]byte(c.Sources),
		c.AgentID,
		c.Outcome,
		c.EmergencyDetected,
		c.ProcessingTimeMs,
		c.ErrorMessage,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}

	r.logger.Debug("consultation inserted", zap.String("id", c.ID.String()), zap.String("outcome", string(c.Outcome)))
	return nil
}

// UpdateVoiceURL attaches generated audio to a consultation owned by userID
func (r *ConsultationRepository) UpdateVoiceURL(ctx context.Context, id uuid.UUID, userID, audioURL string) error {
	query := `
		UPDATE medical_consultations
		SET voice_audio_url = $1
		WHERE id = $2 AND user_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, audioURL, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update consultation voice url: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("consultation not found: %s", id)
	}
	return nil
}
