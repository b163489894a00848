package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/infra/resilience"
	"github.com/boddenberg/ar-collections-go/internal/port"
	"github.com/boddenberg/ar-collections-go/internal/prompt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MaxBatchSize caps the number of drafts in one GenerateBatch call.
const MaxBatchSize = 25

// DraftsConfig tunes the draft service.
type DraftsConfig struct {
	// Credential names the setting reported when no generator is configured.
	Credential string
	MaxTokens  int
	// BatchConcurrency bounds in-flight items of one batch. Provider calls are
	// additionally bounded by the shared bulkhead.
	BatchConcurrency int
}

// Drafts generates collection email drafts through a text-generation provider.
type Drafts struct {
	generator port.TextGenerator
	renderer  *prompt.Renderer
	cache     port.Cache[domain.DraftResponse]
	bulkhead  *resilience.Bulkhead
	limiter   *rate.Limiter
	cfg       DraftsConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDrafts creates the draft service. A nil generator is allowed: every call
// then fails with ErrConfiguration naming cfg.Credential.
func NewDrafts(
	generator port.TextGenerator,
	renderer *prompt.Renderer,
	cache port.Cache[domain.DraftResponse],
	bulkhead *resilience.Bulkhead,
	limiter *rate.Limiter,
	cfg DraftsConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Drafts {
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return &Drafts{
		generator: generator,
		renderer:  renderer,
		cache:     cache,
		bulkhead:  bulkhead,
		limiter:   limiter,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Configured reports whether a provider credential is present.
func (d *Drafts) Configured() bool {
	return d.generator != nil
}

// Provider names the configured backend, or "" when none is configured.
func (d *Drafts) Provider() string {
	if d.generator == nil {
		return ""
	}
	return d.generator.Provider()
}

// Generate produces one draft. Identical requests are answered from the cache.
func (d *Drafts) Generate(ctx context.Context, req *domain.DraftRequest) (*domain.DraftResponse, error) {
	ctx, span := tracer.Start(ctx, "Drafts.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.segment", req.Segment),
		attribute.Int("invoice.days_overdue", req.DaysOverdue),
	)

	if d.generator == nil {
		return nil, &domain.ErrConfiguration{Setting: d.cfg.Credential}
	}
	if err := validateDraftRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		d.metrics.RecordRequestDuration("draft", time.Since(start))
	}()

	key := draftCacheKey(req)
	if cached, ok := d.cache.Get(ctx, key); ok {
		d.metrics.IncrCacheHit("draft")
		d.metrics.IncrDraft("success")
		return &cached, nil
	}
	d.metrics.IncrCacheMiss("draft")

	draft, err := d.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		d.metrics.IncrDraft("error")
		d.metrics.IncrExternalError(d.generator.Provider())
		d.logger.Error("draft generation failed",
			zap.String("provider", d.generator.Provider()),
			zap.String("segment", req.Segment),
			zap.Error(err),
		)
		return nil, err
	}

	d.cache.Set(ctx, key, *draft)
	d.metrics.IncrDraft("success")
	d.logger.Info("draft generated",
		zap.String("provider", d.generator.Provider()),
		zap.String("segment", req.Segment),
		zap.String("tone", draft.Tone),
	)
	return draft, nil
}

func (d *Drafts) generate(ctx context.Context, req *domain.DraftRequest) (*domain.DraftResponse, error) {
	provider := d.generator.Provider()

	genReq, err := d.renderer.Render(req)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	genReq.MaxTokens = d.cfg.MaxTokens

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, &domain.ErrUpstream{Provider: provider, Err: fmt.Errorf("rate limit wait: %w", err)}
	}
	if err := d.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrUpstream{Provider: provider, Err: fmt.Errorf("bulkhead: %w", err)}
	}
	d.metrics.SetDraftsInFlight(d.bulkhead.InUse())
	defer func() {
		d.bulkhead.Release()
		d.metrics.SetDraftsInFlight(d.bulkhead.InUse())
	}()

	callStart := time.Now()
	result, err := d.generator.Generate(ctx, genReq)
	d.metrics.RecordRequestDuration("provider", time.Since(callStart))
	if err != nil {
		var upErr *domain.ErrUpstream
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &domain.ErrUpstream{Provider: provider, Err: err}
	}

	d.metrics.RecordTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)

	draft, err := parseDraft(result.Content)
	if err != nil {
		return nil, &domain.ErrUpstream{Provider: provider, Err: err}
	}
	return draft, nil
}

// GenerateBatch produces drafts for up to MaxBatchSize requests. Items fail
// independently; results keep request order.
func (d *Drafts) GenerateBatch(ctx context.Context, reqs []domain.DraftRequest) (*domain.BatchDraftResponse, error) {
	ctx, span := tracer.Start(ctx, "Drafts.GenerateBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(reqs)))

	if len(reqs) == 0 {
		return nil, &domain.ErrValidation{Field: "requests", Message: "at least one draft request is required"}
	}
	if len(reqs) > MaxBatchSize {
		return nil, &domain.ErrValidation{
			Field:   "requests",
			Message: fmt.Sprintf("at most %d draft requests per batch, got %d", MaxBatchSize, len(reqs)),
		}
	}
	if d.generator == nil {
		return nil, &domain.ErrConfiguration{Setting: d.cfg.Credential}
	}

	results := make([]domain.BatchDraftResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(d.cfg.BatchConcurrency)
	for i := range reqs {
		g.Go(func() error {
			results[i].Index = i
			draft, err := d.Generate(ctx, &reqs[i])
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Draft = draft
			return nil
		})
	}
	_ = g.Wait()

	resp := &domain.BatchDraftResponse{Results: results}
	for _, r := range results {
		if r.Error != "" {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	d.logger.Info("draft batch completed",
		zap.String("provider", d.generator.Provider()),
		zap.Int("succeeded", resp.Succeeded),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

func validateDraftRequest(req *domain.DraftRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return &domain.ErrValidation{Field: "customer_name", Message: "is required"}
	}
	if strings.TrimSpace(req.Segment) == "" {
		return &domain.ErrValidation{Field: "segment", Message: "is required"}
	}
	return nil
}

func draftCacheKey(req *domain.DraftRequest) string {
	return "draft:" + strings.Join([]string{
		strconv.Quote(req.CustomerName),
		strconv.FormatFloat(req.AmountDue, 'f', -1, 64),
		strconv.Itoa(req.DaysOverdue),
		strconv.Quote(req.Segment),
	}, ":")
}

// draftFields mirrors DraftResponse with pointers so absent keys can be told
// apart from empty strings.
type draftFields struct {
	Subject       *string `json:"subject"`
	Body          *string `json:"body"`
	Tone          *string `json:"tone"`
	ToneRationale *string `json:"tone_rationale"`
}

// parseDraft decodes the provider reply. A surrounding markdown code fence is tolerated.
func parseDraft(content string) (*domain.DraftResponse, error) {
	var f draftFields
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &f); err != nil {
		return nil, fmt.Errorf("provider returned non-JSON content: %w", err)
	}

	var missing []string
	if f.Subject == nil {
		missing = append(missing, "subject")
	}
	if f.Body == nil {
		missing = append(missing, "body")
	}
	if f.Tone == nil {
		missing = append(missing, "tone")
	}
	if f.ToneRationale == nil {
		missing = append(missing, "tone_rationale")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("provider reply is missing fields: %s", strings.Join(missing, ", "))
	}

	return &domain.DraftResponse{
		Subject:       *f.Subject,
		Body:          *f.Body,
		Tone:          *f.Tone,
		ToneRationale: *f.ToneRationale,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// drop the opening fence line, which may carry a language tag
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
