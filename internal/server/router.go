package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/luminara-health/copilot/internal/api"
	"github.com/luminara-health/copilot/internal/api/handlers"
	"github.com/luminara-health/copilot/internal/api/middleware"
)

type RouterConfig struct {
	IngestHandler  *handlers.IngestHandler
	QueryHandler   *handlers.QueryHandler
	SourceHandler  *handlers.SourceHandler
	SessionHandler *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 10 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingest", cfg.IngestHandler.Ingest)

	r.Post("/query", cfg.QueryHandler.Query)
	r.Post("/search", cfg.QueryHandler.Search)

	r.Route("/sources", func(r chi.Router) {
		r.Get("/", cfg.SourceHandler.List)
		r.Get("/{id}", cfg.SourceHandler.Get)
		r.Delete("/{id}", cfg.SourceHandler.Delete)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Create)
		r.Get("/{id}", cfg.SessionHandler.Get)
	})

	return r
}
