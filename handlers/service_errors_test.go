package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/medrag/services"
	"github.com/upb/medrag/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name             string
		err              error
		expectedStatus   int
		expectedCategory string
		expectedDetails  string
	}{
		{
			name:             "validation error",
			err:              services.ErrEmptyQuery,
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedCategory: utils.CategoryValidation,
			expectedDetails:  "Query is required and cannot be empty",
		},
		{
			name:             "authentication error",
			err:              services.ErrTokenExpired,
			expectedStatus:   http.StatusUnauthorized,
			expectedCategory: utils.CategoryAuthentication,
			expectedDetails:  "authentication token expired",
		},
		{
			name:             "unsupported format",
			err:              services.UnsupportedFormat(".csv"),
			expectedStatus:   http.StatusUnsupportedMediaType,
			expectedCategory: utils.CategoryUnsupportedFormat,
			expectedDetails:  "Unsupported file format: .csv",
		},
		{
			name:             "not found",
			err:              services.ErrDocumentNotFound,
			expectedStatus:   http.StatusNotFound,
			expectedCategory: utils.CategoryNotFound,
			expectedDetails:  "document not found",
		},
		{
			name:             "processing error hides the cause",
			err:              services.WrapProcessing("Failed to generate response", errors.New("sk-live key rejected")),
			expectedStatus:   http.StatusInternalServerError,
			expectedCategory: utils.CategoryProcessing,
			expectedDetails:  "Failed to generate response",
		},
		{
			name:             "provider not configured",
			err:              services.ErrProviderNotConfigured,
			expectedStatus:   http.StatusInternalServerError,
			expectedCategory: utils.CategoryProcessing,
			expectedDetails:  "LLM provider is not configured",
		},
		{
			name:             "plain error",
			err:              errors.New("pq: connection refused"),
			expectedStatus:   http.StatusInternalServerError,
			expectedCategory: utils.CategoryProcessing,
			expectedDetails:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.expectedCategory, body.Category)
			assert.Equal(t, tt.expectedDetails, body.Details)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, 0, w.Body.Len())
}

func TestHandleServiceError_DetailsBecomeFields(t *testing.T) {
	err := services.NewDomainError(services.ErrorTypeValidation, "unknown preferred agent", nil).
		WithDetail("preferred_agent", "gpt-9").
		WithDetail("available", []string{"txagent", "openai"})

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "gpt-9", body.Fields["preferred_agent"])
	assert.Equal(t, "openai, txagent", body.Fields["available"])
}

func TestHandleValidationError(t *testing.T) {
	type payload struct {
		Text string `validate:"notblank"`
	}

	w := httptest.NewRecorder()
	HandleValidationError(w, utils.ValidateStruct(&payload{Text: "  "}), zap.NewNop())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Text is required and cannot be empty", body.Details)
	assert.Contains(t, body.Fields, "Text")
}
