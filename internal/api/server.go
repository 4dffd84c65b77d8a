// Package api is the HTTP host for lessons and mounted sessions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/store"
)

// Options tune the server.
type Options struct {
	Logger       *zap.Logger
	Timeout      time.Duration
	SweepWorkers int
}

// Server handles HTTP requests
type Server struct {
	db           store.DB
	sessions     *session.Manager
	log          *zap.Logger
	timeout      time.Duration
	sweepWorkers int
	startTime    time.Time
}

// NewServer creates a new API server
func NewServer(db store.DB, sessions *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Server{
		db:           db,
		sessions:     sessions,
		log:          opts.Logger.Named("api"),
		timeout:      opts.Timeout,
		sweepWorkers: opts.SweepWorkers,
		startTime:    time.Now(),
	}
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(CORSMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/interaction-types", s.handleInteractionTypes)

	r.Route("/lessons", func(r chi.Router) {
		r.Get("/", s.handleListLessons)
		r.Post("/", s.handleCreateLesson)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLesson)
			r.Delete("/", s.handleDeleteLesson)
			r.Post("/sweep", s.handleSweepLesson)
			r.Get("/sweeps", s.handleListSweeps)
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/input", s.handleSessionInput)
			r.Get("/frame.png", s.handleSessionFrame)
		})
	})

	return r
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", Version)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	return dec.Decode(v)
}
