package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// DefaultMaxUploadBytes bounds POST /ar/priority bodies when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// HealthCheck is a named dependency probe used by /healthz and /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig carries transport-level settings.
type RouterConfig struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	Checks         []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(collections *service.Collections, drafts *service.Drafts, metrics *observability.Metrics, logger *zap.Logger, cfg RouterConfig) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Upload-Id"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/", rootHandler())
	r.Get("/healthz", healthzHandler(drafts, cfg.Checks))
	r.Get("/readyz", readyzHandler(cfg.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Accounts receivable ---
	r.Route("/ar", func(r chi.Router) {
		r.With(limitBody(cfg.MaxUploadBytes)).Post("/priority", priorityHandler(collections, logger))
		r.Post("/draft", draftHandler(drafts, logger))
		r.Post("/drafts", batchDraftHandler(drafts, logger))
		r.Get("/metrics/drafts", draftMetricsHandler(metrics))
	})

	return r
}

func rootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.RootStatus{Status: "ok", Message: "AR Collections API"})
	}
}

func healthzHandler(drafts *service.Drafts, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "collections-api", Status: "healthy", LastChecked: now},
		}

		if drafts != nil {
			provider := domain.ServiceHealth{Name: "draft-provider", Status: "healthy", LastChecked: now}
			if drafts.Configured() {
				provider.Detail = drafts.Provider()
			} else {
				provider.Status = "degraded"
				provider.Detail = "no provider credential configured"
			}
			services = append(services, provider)
		}

		for _, c := range checks {
			s := domain.ServiceHealth{Name: c.Name, Status: "healthy", LastChecked: now}
			if err := c.Check(ctx); err != nil {
				s.Status = "degraded"
				s.Detail = err.Error()
			}
			services = append(services, s)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "check": c.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
