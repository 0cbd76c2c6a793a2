package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error categories as they appear in response bodies
const (
	CategoryAuthentication    = "authentication_error"
	CategoryValidation        = "validation_error"
	CategoryProcessing        = "processing_error"
	CategoryUnsupportedFormat = "unsupported_format"
	CategoryNotFound          = "not_found"
	CategoryUnavailable       = "service_unavailable"
)

// ErrorResponse is the body of every error response.
// Details is a human-readable string; Fields carries per-field validation messages.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Category  string            `json:"category"`
	Details   string            `json:"details"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// now is swapped in tests
var now = time.Now

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with the payload as the body
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteAccepted writes a 202 Accepted response with the payload as the body
func WriteAccepted(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusAccepted, data)
}

// WriteBadRequest writes a 400 Bad Request response for malformed bodies
func WriteBadRequest(w http.ResponseWriter, details string) error {
	return writeError(w, http.StatusBadRequest, "Invalid request", CategoryValidation, details, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, details string) error {
	if details == "" {
		details = "Authentication required"
	}
	return writeError(w, http.StatusUnauthorized, "Authentication failed", CategoryAuthentication, details, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response
func WriteValidationError(w http.ResponseWriter, details string, fields map[string]string) error {
	return writeError(w, http.StatusUnprocessableEntity, "Validation failed", CategoryValidation, details, fields)
}

// WriteUnsupportedFormat writes a 415 Unsupported Media Type response
func WriteUnsupportedFormat(w http.ResponseWriter, details string) error {
	return writeError(w, http.StatusUnsupportedMediaType, "Unsupported format", CategoryUnsupportedFormat, details, nil)
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, details string) error {
	if details == "" {
		details = "Resource not found"
	}
	return writeError(w, http.StatusNotFound, "Not found", CategoryNotFound, details, nil)
}

// WriteProcessingError writes a 500 response for failures after validation
func WriteProcessingError(w http.ResponseWriter, details string) error {
	if details == "" {
		details = "Internal server error"
	}
	return writeError(w, http.StatusInternalServerError, "Processing failed", CategoryProcessing, details, nil)
}

// WriteServiceUnavailable writes a 503 response
func WriteServiceUnavailable(w http.ResponseWriter, details string) error {
	return writeError(w, http.StatusServiceUnavailable, "Service unavailable", CategoryUnavailable, details, nil)
}

func writeError(w http.ResponseWriter, status int, title, category, details string, fields map[string]string) error {
	return WriteJSON(w, status, ErrorResponse{
		Error:     title,
		Category:  category,
		Details:   details,
		Fields:    fields,
		Timestamp: now().UTC().Format(time.RFC3339),
	})
}
