// Package router sets up the HTTP routes and middleware chains of the
// forum server: health and metrics endpoints for operators, and the JSON
// API under /api.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forumcore/internal/handlers"
	"forumcore/internal/middleware"
)

// New creates the chi router. views limits how often one client may record
// views of the same topic.
func New(api *handlers.API, views *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIHeaders)

		r.Get("/sections", api.Sections)
		r.Get("/forums/{id}/topics", api.ForumTopics)
		r.Get("/topics/{id}/posts", api.TopicPosts)
		r.With(views.Middleware).Post("/topics/{id}/views", api.RecordView)
		r.Get("/posts/{id}/location", api.PostLocation)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
