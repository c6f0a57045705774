package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/frame", s.handleLatestFrame)
		r.Get("/descriptor", s.handleDescriptor)

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", s.handleListSlots)
			r.Get("/{slot}/events", s.handleSlotEvents)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured WebSocket path under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// healthResponse is the body of GET /health and the "health" channel.
type healthResponse struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Version        string `json:"version"`
	SlotsConnected int    `json:"slots_connected"`
}

func (s *Server) healthPayload() healthResponse {
	status, reason := s.bridge.HealthStatus()
	return healthResponse{
		Status:         string(status),
		Reason:         reason,
		Version:        s.version,
		SlotsConnected: s.bridge.GetMetrics().SlotsConnected,
	}
}

// handleHealth returns the bridge status. It always answers 200 so that a
// degraded bridge (no controllers) is still reachable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.healthPayload())
}
