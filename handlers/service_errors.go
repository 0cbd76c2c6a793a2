package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/medrag/services"
	"github.com/upb/medrag/utils"
)

// HandleServiceError maps domain errors to HTTP responses.
// Only the domain message reaches the client; wrapped causes are logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := services.GetErrorMessage(err)
	var writeErr error

	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteValidationError(w, message, detailFields(services.GetErrorDetails(err)))

	case services.IsAuthenticationError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsUnsupportedFormatError(err):
		writeErr = utils.WriteUnsupportedFormat(w, message)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsProcessingError(err):
		logger.Error("processing error", zap.Error(err))
		writeErr = utils.WriteProcessingError(w, message)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteProcessingError(w, "Internal server error")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		if err := utils.WriteValidationError(w, err.Error(), utils.GetValidationFields(err)); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteValidationError(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// decodeJSON decodes a request body into dst. An empty body is reported as
// a malformed request.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// detailFields flattens domain error details into per-field messages
func detailFields(details map[string]interface{}) map[string]string {
	if len(details) == 0 {
		return nil
	}

	fields := make(map[string]string, len(details))
	for key, value := range details {
		switch v := value.(type) {
		case []string:
			sorted := append([]string(nil), v...)
			sort.Strings(sorted)
			fields[key] = strings.Join(sorted, ", ")
		default:
			fields[key] = fmt.Sprint(v)
		}
	}
	return fields
}
