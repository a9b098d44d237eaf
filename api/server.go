/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from a browser front end

ROUTE GROUPS:
  /api/students/*        Roster: students
  /api/periods/*         Roster: class schedule
  /api/roster/*          Roster: bulk import and export
  /api/reconciliations/* Upload and poll jobs
  /api/runs              Run history
  /api/session/*         Days reconciled in this process
  /api/health            Liveness + roster counts
  /metrics               Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/attendance/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions tunes cross-cutting concerns of the router.
type RouterOptions struct {
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Location", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Put("/{id}", h.UpdateStudent)
			r.Delete("/{id}", h.DeleteStudent)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Put("/{id}", h.UpdatePeriod)
			r.Delete("/{id}", h.DeletePeriod)
		})

		r.Route("/roster", func(r chi.Router) {
			r.Post("/import", h.ImportRoster)
			r.Get("/export", h.ExportRoster)
		})

		r.Route("/reconciliations", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/", h.SubmitReconciliation)
			r.Get("/{id}", h.GetJob)
		})

		r.Get("/runs", h.ListRuns)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.ResetSession)
			r.Get("/summary", h.GetSessionSummary)
			r.Get("/days/{date}", h.GetSessionDay)
		})
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
