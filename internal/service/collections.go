package service

import (
	"context"
	"time"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/ingest"
	"github.com/boddenberg/ar-collections-go/internal/priority"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// Collections runs the upload pipeline: ingest, score, rank.
// It holds no per-request state.
type Collections struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCollections creates the collections service.
func NewCollections(metrics *observability.Metrics, logger *zap.Logger) *Collections {
	return &Collections{
		metrics: metrics,
		logger:  logger,
	}
}

// RankUpload parses an uploaded invoice table and ranks it by priority score.
// The returned upload ID identifies this run in logs and response headers.
// Ingestion errors are returned unwrapped so callers can match them with errors.As.
func (c *Collections) RankUpload(ctx context.Context, filename string, content []byte) (*domain.RankedResult, string, error) {
	uploadID := uuid.NewString()

	_, span := tracer.Start(ctx, "Collections.RankUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("upload.id", uploadID),
		attribute.String("upload.filename", filename),
		attribute.Int("upload.bytes", len(content)),
	)

	start := time.Now()
	defer func() {
		c.metrics.RecordRequestDuration("rank_upload", time.Since(start))
	}()

	rows, err := ingest.Parse(filename, content)
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordUpload("error", 0)
		c.logger.Warn("upload rejected",
			zap.String("upload_id", uploadID),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return nil, uploadID, err
	}

	ranked := priority.Rank(rows)
	span.SetAttributes(attribute.Int("upload.rows", ranked.Count))
	c.metrics.RecordUpload("success", ranked.Count)

	c.logger.Info("upload ranked",
		zap.String("upload_id", uploadID),
		zap.Int("rows", ranked.Count),
		zap.String("total_overdue", ranked.TotalOverdue.StringFixed(2)),
	)

	return ranked, uploadID, nil
}

// Prioritize is RankUpload followed by response assembly.
func (c *Collections) Prioritize(ctx context.Context, filename string, content []byte) (*domain.PriorityResponse, string, error) {
	ranked, uploadID, err := c.RankUpload(ctx, filename, content)
	if err != nil {
		return nil, uploadID, err
	}
	resp, err := priority.BuildResponse(ranked)
	if err != nil {
		c.logger.Error("response assembly failed",
			zap.String("upload_id", uploadID),
			zap.Error(err),
		)
		return nil, uploadID, err
	}
	return resp, uploadID, nil
}
