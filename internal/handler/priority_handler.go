package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// POST /ar/priority
// multipart/form-data, field "file"
// ============================================================

func priorityHandler(svc *service.Collections, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Priority")
		defer span.End()

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("upload exceeds the maximum allowed size of %d bytes", tooLarge.Limit))
				return
			}
			handleServiceError(w, &domain.ErrValidation{Field: "file", Message: "multipart file field is required"}, logger)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			handleUploadError(w, fmt.Errorf("read upload: %w", err), logger)
			return
		}
		span.SetAttributes(attribute.String("upload.filename", header.Filename))

		resp, uploadID, err := svc.Prioritize(ctx, header.Filename, content)
		if uploadID != "" {
			w.Header().Set("X-Upload-Id", uploadID)
		}
		if err != nil {
			handleUploadError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
