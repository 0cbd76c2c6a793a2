package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/models"
	"github.com/upb/medrag/services/ingestion"
	"github.com/upb/medrag/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	multipartMemory  = 32 << 20
)

// DocumentService ingests documents and manages a user's library
type DocumentService interface {
	Ingest(ctx context.Context, userID, filename string, data []byte) (*ingestion.Result, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	QueueJob(ctx context.Context, userID, filePath string, metadata map[string]interface{}) (*models.ProcessingJob, error)
	GetJob(ctx context.Context, userID string, id uuid.UUID) (*models.ProcessingJob, error)
}

// ProcessDocumentRequest is the body of POST /api/process-document
type ProcessDocumentRequest struct {
	FilePath string                 `json:"file_path"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ProcessDocumentResponse acknowledges a queued job
type ProcessDocumentResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// DocumentSummary is a library entry without its full text
type DocumentSummary struct {
	ID            uuid.UUID       `json:"id"`
	Filename      string          `json:"filename"`
	StoragePath   string          `json:"storage_path"`
	Status        string          `json:"status"`
	ContentLength int             `json:"content_length"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DocumentListResponse is the body of GET /api/documents
type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// DocumentHandler serves upload and library endpoints
type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService, maxUploadBytes int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HandleUpload handles POST /api/upload (multipart field "file")
func (h *DocumentHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteValidationError(w, fmt.Sprintf("File exceeds the maximum upload size of %d bytes", tooLarge.Limit), nil)
			return
		}
		_ = utils.WriteValidationError(w, "Request must be multipart/form-data with a file field", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteValidationError(w, "File is required", map[string]string{"file": "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read upload",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteValidationError(w, "Could not read uploaded file", nil)
		return
	}

	result, err := h.service.Ingest(ctx, middleware.GetUserIDFromContext(ctx), header.Filename, data)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleList handles GET /api/documents?limit&offset
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		_ = utils.WriteValidationError(w, err.Error(), map[string]string{"limit": err.Error()})
		return
	}
	offset, err := queryInt(r, "offset", 0, 0, -1)
	if err != nil {
		_ = utils.WriteValidationError(w, err.Error(), map[string]string{"offset": err.Error()})
		return
	}

	docs, err := h.service.List(ctx, middleware.GetUserIDFromContext(ctx), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	summaries := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, DocumentSummary{
			ID:            d.ID,
			Filename:      d.Filename,
			StoragePath:   d.StoragePath,
			Status:        string(d.Status),
			ContentLength: len(d.Content),
			Metadata:      d.Metadata,
			CreatedAt:     d.CreatedAt,
		})
	}

	_ = utils.WriteOK(w, DocumentListResponse{
		Documents: summaries,
		Total:     len(summaries),
		Limit:     limit,
		Offset:    offset,
	})
}

// HandleDelete handles DELETE /api/documents/{id}
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteValidationError(w, "Document id must be a valid UUID", nil)
		return
	}

	if err := h.service.Delete(ctx, middleware.GetUserIDFromContext(ctx), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"success":     true,
		"document_id": id,
	})
}

// HandleProcessDocument handles POST /api/process-document
func (h *DocumentHandler) HandleProcessDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	job, err := h.service.QueueJob(ctx, middleware.GetUserIDFromContext(ctx), req.FilePath, req.Metadata)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteAccepted(w, ProcessDocumentResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "Document is being processed in the background",
	})
}

// HandleGetJob handles GET /api/process-document/{job_id}
func (h *DocumentHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		_ = utils.WriteValidationError(w, "Job id must be a valid UUID", nil)
		return
	}

	job, err := h.service.GetJob(ctx, middleware.GetUserIDFromContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, job)
}

// queryInt parses an optional integer query parameter. max < 0 means unbounded.
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be at least %d", name, min)
	}
	if max >= 0 && v > max {
		return 0, fmt.Errorf("%s must be at most %d", name, max)
	}
	return v, nil
}
