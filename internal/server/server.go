package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/ghostkg/internal/agent"
	"github.com/lazypower/ghostkg/internal/store"
)

// Server is the ghostkg HTTP API server.
type Server struct {
	store   *store.Store
	manager *agent.Manager
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the shared store and agent registry.
func New(s *store.Store, m *agent.Manager, version string) *Server {
	srv := &Server{
		store:   s,
		manager: m,
		version: version,
		started: time.Now(),
	}
	srv.routes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/agents", s.handleListAgents)

		r.Route("/agents/{owner}", func(r chi.Router) {
			r.Post("/time", s.handleSetTime)
			r.Post("/learn", s.handleLearn)
			r.Post("/review", s.handleReview)
			r.Get("/context", s.handleContext)
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/logs", s.handleLogs)
			r.Delete("/", s.handleClear)
		})

		r.Get("/cache/stats", s.handleCacheStats)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.store.DB().Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.store.DB().Path,
	})
}
