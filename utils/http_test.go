package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK_NoEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, map[string]int{"dimensions": 768}))

	var response map[string]int
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 768, response["dimensions"])
}

func TestErrorWriters(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	tests := []struct {
		name         string
		write        func(http.ResponseWriter) error
		wantStatus   int
		wantError    string
		wantCategory string
		wantDetails  string
	}{
		{
			name:         "unauthorized default details",
			write:        func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			wantStatus:   http.StatusUnauthorized,
			wantError:    "Authentication failed",
			wantCategory: CategoryAuthentication,
			wantDetails:  "Authentication required",
		},
		{
			name:         "validation",
			write:        func(w http.ResponseWriter) error { return WriteValidationError(w, "Query is required", nil) },
			wantStatus:   http.StatusUnprocessableEntity,
			wantError:    "Validation failed",
			wantCategory: CategoryValidation,
			wantDetails:  "Query is required",
		},
		{
			name:         "unsupported format",
			write:        func(w http.ResponseWriter) error { return WriteUnsupportedFormat(w, "Unsupported file format: .csv") },
			wantStatus:   http.StatusUnsupportedMediaType,
			wantError:    "Unsupported format",
			wantCategory: CategoryUnsupportedFormat,
			wantDetails:  "Unsupported file format: .csv",
		},
		{
			name:         "processing",
			write:        func(w http.ResponseWriter) error { return WriteProcessingError(w, "LLM provider is not configured") },
			wantStatus:   http.StatusInternalServerError,
			wantError:    "Processing failed",
			wantCategory: CategoryProcessing,
			wantDetails:  "LLM provider is not configured",
		},
		{
			name:         "not found",
			write:        func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantStatus:   http.StatusNotFound,
			wantError:    "Not found",
			wantCategory: CategoryNotFound,
			wantDetails:  "Resource not found",
		},
		{
			name:         "bad request",
			write:        func(w http.ResponseWriter) error { return WriteBadRequest(w, "Invalid JSON body") },
			wantStatus:   http.StatusBadRequest,
			wantError:    "Invalid request",
			wantCategory: CategoryValidation,
			wantDetails:  "Invalid JSON body",
		},
		{
			name:         "service unavailable",
			write:        func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "database unreachable") },
			wantStatus:   http.StatusServiceUnavailable,
			wantError:    "Service unavailable",
			wantCategory: CategoryUnavailable,
			wantDetails:  "database unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantCategory, response.Category)
			assert.Equal(t, tt.wantDetails, response.Details)
			assert.Equal(t, "2024-03-01T12:00:00Z", response.Timestamp)
		})
	}
}

func TestWriteValidationError_Fields(t *testing.T) {
	w := httptest.NewRecorder()
	fields := map[string]string{"Query": "Query is required and cannot be empty"}

	require.NoError(t, WriteValidationError(w, "Query is required and cannot be empty", fields))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, fields, response.Fields)
}
