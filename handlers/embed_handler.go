package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/services"
	"github.com/upb/medrag/services/embedding"
	"github.com/upb/medrag/utils"
)

// TextEmbedder is the subset of embedding.Embedder the handler needs
type TextEmbedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedRequest is the body of POST /api/embed. Texts selects the batch form.
type EmbedRequest struct {
	Text      string   `json:"text"`
	Texts     []string `json:"texts" validate:"omitempty,max=64,dive,notblank"`
	Normalize *bool    `json:"normalize"`
}

// EmbedResponse is returned for a single text
type EmbedResponse struct {
	Embedding      []float32 `json:"embedding"`
	Dimensions     int       `json:"dimensions"`
	Model          string    `json:"model"`
	ProcessingTime int64     `json:"processing_time"`
}

// BatchEmbedResponse is returned for the batch form
type BatchEmbedResponse struct {
	Embeddings     [][]float32 `json:"embeddings"`
	Dimensions     int         `json:"dimensions"`
	Model          string      `json:"model"`
	ProcessingTime int64       `json:"processing_time"`
}

// EmbedHandler exposes the embedding model
type EmbedHandler struct {
	embedder TextEmbedder
	logger   *zap.Logger
}

// NewEmbedHandler creates a new EmbedHandler
func NewEmbedHandler(embedder TextEmbedder, logger *zap.Logger) *EmbedHandler {
	return &EmbedHandler{
		embedder: embedder,
		logger:   logger,
	}
}

// HandleEmbed handles POST /api/embed
func (h *EmbedHandler) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	start := time.Now()

	var req EmbedRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	normalize := req.Normalize == nil || *req.Normalize

	if len(req.Texts) > 0 {
		vectors, err := h.embedder.EmbedBatch(ctx, req.Texts)
		if err != nil {
			h.logger.Error("batch embedding failed",
				zap.String("request_id", requestID),
				zap.Int("count", len(req.Texts)),
				zap.Error(err))
			HandleServiceError(w, services.WrapProcessing("Failed to generate embeddings", err), h.logger)
			return
		}
		if normalize {
			for i := range vectors {
				vectors[i] = embedding.Normalize(vectors[i])
			}
		}
		_ = utils.WriteOK(w, BatchEmbedResponse{
			Embeddings:     vectors,
			Dimensions:     dimensionsOf(vectors),
			Model:          h.embedder.Model(),
			ProcessingTime: time.Since(start).Milliseconds(),
		})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		HandleServiceError(w, services.ErrEmptyText, h.logger)
		return
	}

	vec, err := h.embedder.Embed(ctx, req.Text)
	if err != nil {
		h.logger.Error("embedding failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, services.WrapProcessing("Failed to generate embedding", err), h.logger)
		return
	}
	if normalize {
		vec = embedding.Normalize(vec)
	}

	_ = utils.WriteOK(w, EmbedResponse{
		Embedding:      vec,
		Dimensions:     len(vec),
		Model:          h.embedder.Model(),
		ProcessingTime: time.Since(start).Milliseconds(),
	})
}

func dimensionsOf(vectors [][]float32) int {
	if len(vectors) == 0 {
		return 0
	}
	return len(vectors[0])
}
