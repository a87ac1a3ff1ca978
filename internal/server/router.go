package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/server/handler"
	"github.com/sevigo/commit-digest/internal/storage"
	"github.com/sevigo/commit-digest/internal/telemetry"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	Ingestor  handler.PushIngestor
	Enqueuer  handler.WebhookEnqueuer
	Jobs      storage.JobStore
	Processor handler.ProcessorInspector
	Metrics   *telemetry.Metrics
	// MetricsHandler defaults to the prometheus default registry.
	MetricsHandler http.Handler
}

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, deps Dependencies, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = telemetry.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		webhookHandler := handler.NewWebhookHandler(cfg.GitHub.WebhookSecret, cfg.Webhook.Mode,
			deps.Ingestor, deps.Enqueuer, deps.Metrics, logger)
		r.Post("/webhook/github", webhookHandler.Handle)

		jobsHandler := handler.NewJobsHandler(deps.Jobs, deps.Processor, logger)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobsHandler.List)
			r.Get("/stats", jobsHandler.Stats)
			r.Get("/{id}", jobsHandler.Get)
			r.Post("/{id}/cancel", jobsHandler.Cancel)
			r.Post("/{id}/retry", jobsHandler.Retry)
		})
	})

	return r
}
