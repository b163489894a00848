package observability

import (
	"time"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the collections service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
	invoicesRanked  prometheus.Counter
	uploadRows      prometheus.Histogram
	draftsTotal     *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	draftsInFlight  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collections_operation_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_uploads_total",
				Help: "Invoice uploads processed, by outcome.",
			},
			[]string{"status"},
		),
		invoicesRanked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "collections_invoices_ranked_total",
				Help: "Invoice rows scored and ranked.",
			},
		),
		uploadRows: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collections_upload_rows",
				Help:    "Rows per successful upload.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		draftsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_drafts_total",
				Help: "Draft generation requests, by outcome.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		draftsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collections_drafts_in_flight",
				Help: "Provider calls currently holding a bulkhead slot.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordUpload counts an upload outcome and, on success, its row count.
func (m *Metrics) RecordUpload(status string, rows int) {
	m.uploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.invoicesRanked.Add(float64(rows))
		m.uploadRows.Observe(float64(rows))
	}
}

// IncrDraft counts a draft request outcome.
func (m *Metrics) IncrDraft(status string) {
	m.draftsTotal.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// SetDraftsInFlight records the number of occupied provider slots.
func (m *Metrics) SetDraftsInFlight(n int) {
	m.draftsInFlight.Set(float64(n))
}

// GetDraftSnapshot returns a snapshot of draft-related metrics suitable for the
// GET /ar/metrics/drafts endpoint.
func (m *Metrics) GetDraftSnapshot() *domain.DraftMetrics {
	// Prometheus counters expose cumulative values.
	promptTokens := getCounterValue(m.tokensUsed.WithLabelValues("prompt"))
	completionTokens := getCounterValue(m.tokensUsed.WithLabelValues("completion"))
	succeeded := getCounterValue(m.draftsTotal.WithLabelValues("success"))
	failed := getCounterValue(m.draftsTotal.WithLabelValues("error"))
	cacheHits := getCounterValue(m.cacheHits.WithLabelValues("draft"))
	cacheMisses := getCounterValue(m.cacheMisses.WithLabelValues("draft"))

	totalRequests := succeeded + failed
	avgTokens := float64(0)
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		avgTokens = (promptTokens + completionTokens) / totalRequests
		errorRate = failed / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.DraftMetrics{
		TotalRequests:       int64(totalRequests),
		ErrorRate:           errorRate,
		PromptTokens:        int64(promptTokens),
		CompletionTokens:    int64(completionTokens),
		AvgTokensPerRequest: avgTokens,
		CacheHitRate:        cacheHitRate,
		InvoicesRanked:      int64(getCounterValue(m.invoicesRanked)),
		InFlight:            int64(getGaugeValue(m.draftsInFlight)),
		Period:              "all_time",
	}
}

func getGaugeValue(gauge prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}

// getCounterValue extracts the current float64 value from a counter.
func getCounterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
