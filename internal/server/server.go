// Package server provides the HTTP API for submitting and inspecting
// VQE runs.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/archive"
	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/events"
	"github.com/qvarlab/qvar/internal/queue"
	"github.com/qvarlab/qvar/internal/runs"
)

// Config holds the server's collaborators.
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	DefaultShots int // applied when a submitted run does not set shots
	Repository   *runs.Repository
	Archive      *archive.Store // optional
	Pool         *queue.Pool
	Bus          *events.Bus
	Ansatzes     *ansatz.Registry
	Backends     *backend.Registry
}

// Server is the HTTP API server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	cfg     Config
	started time.Time
}

// New creates a configured server.
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		cfg:     cfg,
		started: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/vqe/runs", func(r chi.Router) {
			r.Post("/", s.handleCreateRun)
			r.Get("/", s.handleListRuns)
			r.Get("/{uuid}", s.handleGetRun)
			r.Delete("/{uuid}", s.handleDeleteRun)
			r.Get("/{uuid}/evaluations", s.handleGetEvaluations)
			r.Get("/{uuid}/stream", s.handleStreamRun)
		})

		r.Get("/ansatzes", s.handleListAnsatzes)
		r.Get("/ansatzes/{name}/qasm", s.handleAnsatzQASM)
		r.Get("/backends", s.handleListBackends)
		r.Get("/archive", s.handleListArchive)
		r.Get("/archive/{uuid}", s.handleGetArchived)
		r.Get("/system/health", s.handleHealth)
	})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

// writeJSON wraps the payload in the standard response envelope.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}
