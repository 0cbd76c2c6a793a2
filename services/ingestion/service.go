package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/internal/extract"
	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/internal/storage"
	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/services"
)

// Embedder turns document text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result describes an ingested document
type Result struct {
	DocumentID       uuid.UUID `json:"document_id"`
	Filename         string    `json:"filename"`
	ContentLength    int       `json:"content_length"`
	VectorDimensions int       `json:"vector_dimensions"`
	StoragePath      string    `json:"storage_path"`
}

// Service ingests documents and manages a user's document library
type Service struct {
	extractor *extract.Registry
	embedder  Embedder
	docs      repositories.DocumentRepository
	jobs      repositories.JobRepository
	store     storage.Store
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewService creates an ingestion service. metrics may be nil.
func NewService(
	extractor *extract.Registry,
	embedder Embedder,
	docs repositories.DocumentRepository,
	jobs repositories.JobRepository,
	store storage.Store,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		extractor: extractor,
		embedder:  embedder,
		docs:      docs,
		jobs:      jobs,
		store:     store,
		logger:    logger,
		metrics:   metrics,
	}
}

// StoragePath is the object key for a document's original bytes
func StoragePath(id uuid.UUID, filename string) string {
	return fmt.Sprintf("docs/%s/%s", id, path.Base(filename))
}

// Ingest extracts, embeds and stores a document. The record is only made
// visible to search once the bytes are stored; partial work is undone on failure.
func (s *Service) Ingest(ctx context.Context, userID, filename string, data []byte) (*Result, error) {
	logger := observability.LoggerFromContext(ctx, s.logger).With(
		zap.String("user_id", userID),
		zap.String("filename", filename),
	)
	fileType := strings.TrimPrefix(extract.Extension(filename), ".")

	if !s.extractor.Supports(filename) {
		s.metrics.ObserveIngestion(fileType, "unsupported")
		return nil, services.UnsupportedFormat(extract.Extension(filename))
	}

	extracted, err := s.extractor.Extract(ctx, data, filename)
	if err != nil {
		s.metrics.ObserveIngestion(fileType, "extract_failed")
		return nil, err
	}
	if strings.TrimSpace(extracted.Text) == "" {
		s.metrics.ObserveIngestion(fileType, "empty")
		return nil, services.ErrEmptyDocument
	}

	vec, err := s.embedder.Embed(ctx, extracted.Text)
	if err != nil {
		s.metrics.ObserveIngestion(fileType, "embed_failed")
		return nil, services.WrapProcessing("Failed to generate document embedding", err)
	}

	doc := models.NewDocument(userID, path.Base(filename), extracted.Text, vec)
	if _, err := doc.WithMetadata(extracted.Metadata); err != nil {
		return nil, services.WrapProcessing("Failed to encode document metadata", err)
	}
	storagePath := StoragePath(doc.ID, filename)
	logger = logger.With(zap.String("document_id", doc.ID.String()))

	if err := s.docs.CreatePending(ctx, doc); err != nil {
		s.metrics.ObserveIngestion(fileType, "db_failed")
		return nil, services.WrapProcessing("Failed to store document", err)
	}

	if err := s.store.Upload(ctx, storagePath, data, contentType(filename)); err != nil {
		logger.Error("upload failed, removing pending document", zap.Error(err))
		s.deleteRecord(logger, doc.ID, userID)
		s.metrics.ObserveIngestion(fileType, "storage_failed")
		return nil, services.WrapProcessing("Failed to upload document", err)
	}

	if err := s.docs.MarkReady(ctx, doc.ID, storagePath); err != nil {
		logger.Error("marking document ready failed, rolling back", zap.Error(err))
		s.removeObject(logger, storagePath)
		s.deleteRecord(logger, doc.ID, userID)
		s.metrics.ObserveIngestion(fileType, "db_failed")
		return nil, services.WrapProcessing("Failed to store document", err)
	}

	s.metrics.ObserveIngestion(fileType, "success")
	logger.Info("document ingested",
		zap.Int("content_length", len(extracted.Text)),
		zap.Int("dimensions", len(vec)),
	)

	return &Result{
		DocumentID:       doc.ID,
		Filename:         doc.Filename,
		ContentLength:    len(extracted.Text),
		VectorDimensions: len(vec),
		StoragePath:      storagePath,
	}, nil
}

// List returns the caller's ready documents
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error) {
	docs, err := s.docs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapProcessing("Failed to list documents", err)
	}
	return docs, nil
}

// Delete removes a document and its stored object
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	logger := observability.LoggerFromContext(ctx, s.logger).With(
		zap.String("user_id", userID),
		zap.String("document_id", id.String()),
	)

	doc, err := s.docs.GetByID(ctx, id, userID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return err
		}
		return services.WrapProcessing("Failed to load document", err)
	}

	if err := s.docs.Delete(ctx, id, userID); err != nil {
		if services.IsNotFoundError(err) {
			return err
		}
		return services.WrapProcessing("Failed to delete document", err)
	}

	if doc.StoragePath != "" {
		s.removeObject(logger, doc.StoragePath)
	}
	logger.Info("document deleted")
	return nil
}

// QueueJob records a processing request for a file already in storage
func (s *Service) QueueJob(ctx context.Context, userID, filePath string, metadata map[string]interface{}) (*models.ProcessingJob, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, services.Validation("File path is required and cannot be empty")
	}

	var raw json.RawMessage
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, services.Validation("metadata must be a JSON object")
		}
		raw = data
	}

	job := models.NewProcessingJob(userID, filePath, raw)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, services.WrapProcessing("Failed to queue document processing", err)
	}

	s.logger.Info("processing job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", userID),
		zap.String("file_path", filePath),
	)
	return job, nil
}

// GetJob returns a job owned by userID
func (s *Service) GetJob(ctx context.Context, userID string, id uuid.UUID) (*models.ProcessingJob, error) {
	job, err := s.jobs.GetByID(ctx, id, userID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, err
		}
		return nil, services.WrapProcessing("Failed to load processing job", err)
	}
	return job, nil
}

const cleanupTimeout = 30 * time.Second

// cleanupContext is detached from the request so a canceled request still undoes its work
func cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cleanupTimeout)
}

func (s *Service) deleteRecord(logger *zap.Logger, id uuid.UUID, userID string) {
	ctx, cancel := cleanupContext()
	defer cancel()
	if err := s.docs.Delete(ctx, id, userID); err != nil {
		logger.Error("failed to delete pending document", zap.Error(err))
	}
}

func (s *Service) removeObject(logger *zap.Logger, objectPath string) {
	ctx, cancel := cleanupContext()
	defer cancel()
	if err := s.store.Remove(ctx, objectPath); err != nil {
		logger.Warn("failed to remove stored object", zap.String("path", objectPath), zap.Error(err))
	}
}

func contentType(filename string) string {
	switch extract.Extension(filename) {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	}
	if ct := mime.TypeByExtension(extract.Extension(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
