package handler

import (
	"net/http"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// POST /ar/draft
// ============================================================

func draftHandler(svc *service.Drafts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Draft")
		defer span.End()

		var req domain.DraftRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("customer.segment", req.Segment))

		draft, err := svc.Generate(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, draft)
	}
}

// ============================================================
// POST /ar/drafts
// ============================================================

func batchDraftHandler(svc *service.Drafts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.DraftBatch")
		defer span.End()

		var req domain.BatchDraftRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("batch.size", len(req.Requests)))

		resp, err := svc.GenerateBatch(ctx, req.Requests)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// GET /ar/metrics/drafts
// ============================================================

func draftMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetDraftSnapshot())
	}
}
