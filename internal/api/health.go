package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/store"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one component's status.
type HealthCheck struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration,omitempty"`
}

// HealthCheckResponse is the /health body.
type HealthCheckResponse struct {
	Status     HealthStatus           `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Checks     map[string]HealthCheck `json:"checks"`
	Goroutines int                    `json:"goroutines"`
	RequestID  string                 `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"engines":  s.checkEngines(),
		"database": s.checkDatabase(r.Context()),
		"sessions": {Status: HealthStatusHealthy, Message: fmt.Sprintf("%d live", s.sessions.Len())},
	}
	overall := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}
	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, HealthCheckResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    Version,
		Uptime:     time.Since(s.startTime).String(),
		Checks:     checks,
		Goroutines: runtime.NumGoroutine(),
		RequestID:  middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkEngines() HealthCheck {
	n := len(interactions.Specs())
	c := HealthCheck{Status: HealthStatusHealthy, Message: fmt.Sprintf("%d engines registered", n)}
	if n < len(lesson.Types()) {
		c.Status = HealthStatusDegraded
	}
	if n == 0 {
		c.Status = HealthStatusUnhealthy
	}
	return c
}

func (s *Server) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	if s.db == nil {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "database not initialized"}
	}
	if _, err := s.db.ListLessons(ctx, store.LessonsQuery{Limit: 1}); err != nil {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: err.Error(), Duration: time.Since(start).String()}
	}
	return HealthCheck{Status: HealthStatusHealthy, Message: "database reachable", Duration: time.Since(start).String()}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) handleInteractionTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, interactions.Specs())
}
