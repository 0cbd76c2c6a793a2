package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/utils"
)

const (
	serviceName    = "Medical RAG Backend"
	serviceVersion = "1.0.0"
	embeddingModel = "dmis-lab/biobert-v1.1"
)

// HealthChecker reports whether a remote dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Model     string            `json:"model,omitempty"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ServiceInfo is the body of GET /
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db       *sql.DB
	embedder HealthChecker
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and embedder may be nil.
func NewHealthHandler(db *sql.DB, embedder HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		embedder: embedder,
		logger:   logger,
	}
}

// HandleRoot handles GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, ServiceInfo{
		Service: serviceName,
		Version: serviceVersion,
		Status:  "operational",
		Endpoints: map[string]string{
			"health":               "GET /health",
			"readiness":            "GET /readyz",
			"metrics":              "GET /metrics",
			"embed":                "POST /api/embed",
			"chat":                 "POST /api/chat",
			"medical_consultation": "POST /api/medical-consultation",
			"upload":               "POST /api/upload",
			"documents":            "GET /api/documents",
			"process_document":     "POST /api/process-document",
			"generate_voice":       "POST /api/generate-voice",
			"voices":               "GET /api/voices",
		},
	})
}

// HandleHealth handles GET /health
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Model:     embeddingModel,
		Version:   serviceVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that the database and embedding service are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.embedder == nil {
		checks["embedding"] = "not_configured"
	} else if err := h.embedder.Health(ctx); err != nil {
		h.logger.Warn("embedding service health check failed", zap.Error(err))
		checks["embedding"] = "unhealthy"
		allHealthy = false
	} else {
		checks["embedding"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}

	return nil
}
