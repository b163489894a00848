package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON encodes data before committing the status. Encode failures
// are written as a 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// decodeJSON reads a JSON request body into dst. Malformed bodies become ErrValidation.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if writeDomainError(w, err, logger) {
		return
	}
	logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// handleUploadError is handleServiceError for the upload route, where
// unexpected failures are reported with their text.
func handleUploadError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if writeDomainError(w, err, logger) {
		return
	}
	logger.Error("upload processing failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Error processing file: "+err.Error())
}

// writeDomainError writes the response for a known domain error and reports
// whether it did.
func writeDomainError(w http.ResponseWriter, err error, logger *zap.Logger) bool {
	var schema *domain.ErrSchema
	var decode *domain.ErrDecode
	var parse *domain.ErrParse
	var validation *domain.ErrValidation
	var configuration *domain.ErrConfiguration
	var upstream *domain.ErrUpstream

	switch {
	case errors.As(err, &schema):
		logger.Debug("schema error", zap.Strings("missing", schema.Missing))
		writeError(w, http.StatusBadRequest, schema.Error())
	case errors.As(err, &decode):
		logger.Debug("decode error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, decode.Error())
	case errors.As(err, &parse):
		logger.Debug("parse error",
			zap.Int("row", parse.Row),
			zap.String("column", parse.Column),
		)
		writeError(w, http.StatusUnprocessableEntity, parse.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &configuration):
		logger.Error("missing configuration", zap.String("setting", configuration.Setting))
		writeError(w, http.StatusInternalServerError, configuration.Error())
	case errors.As(err, &upstream):
		logger.Error("upstream failure", zap.String("provider", upstream.Provider), zap.Error(err))
		writeError(w, http.StatusBadGateway, upstream.Error())
	default:
		return false
	}
	return true
}
