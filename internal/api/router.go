// Package api assembles the HTTP review surface.
package api

import (
	"net/http"

	"github.com/dvloznov/statement-review/internal/api/handlers"
	"github.com/dvloznov/statement-review/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the handlers and optional metrics endpoint served by the router.
type Deps struct {
	Files  *handlers.FilesHandler
	Checks *handlers.ChecksHandler
	Jobs   *handlers.JobsHandler
	Log    zerolog.Logger

	// MetricsPath and Metrics are mounted when Metrics is non-nil.
	MetricsPath string
	Metrics     http.Handler
}

// NewRouter wires every route behind the standard middleware chain.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS)

	r.Get("/health", handlers.Health)
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Files
		r.Post("/files", d.Files.CreateFile)
		r.Get("/files", d.Files.ListFiles)
		r.Get("/files/{id}", d.Files.GetFile)
		r.Post("/files/{id}/extract", d.Files.Extract)
		r.Post("/files/{id}/extract/async", d.Files.EnqueueExtract)
		r.Get("/files/{id}/checks", d.Checks.FileChecks)

		// Checks
		r.Get("/checks", d.Checks.ListChecks)
		r.Post("/checks/run", d.Checks.RunChecks)

		// Jobs
		r.Get("/jobs", d.Jobs.ListJobs)
		r.Get("/jobs/{id}", d.Jobs.GetJob)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
