// Package server exposes the fill workflow over HTTP: document intake and
// lookup, and the review queue. Handlers stay thin; the pipeline owns the
// work.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/pipeline"
	"github.com/docufill/fieldcalc/internal/store"
)

// Options wires the server's collaborators.
type Options struct {
	Pipeline       *pipeline.Pipeline
	Store          store.Store
	AllowedOrigins []string
}

// Server serves the JSON API.
type Server struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	origins  []string
}

// New creates a Server. An empty origin list allows every origin.
func New(opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		origins:  origins,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleCreateDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/review", s.handleListReview)
		r.Post("/review/{id}/resolve", s.handleResolveReview)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
