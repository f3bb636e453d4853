package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// HealthHandler reports liveness. A configured but unreachable Redis turns the
// status to "degraded"; visitor state then falls back to defaults.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	resp := healthResponse{Status: "ok", Store: "memory"}
	if s.Store != nil && s.Store.Client != nil {
		resp.Store = "redis"
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		if err := s.Store.Client.Ping(ctx).Err(); err != nil {
			resp.Status = "degraded"
		}
		cancel()
	}
	writeJSON(w, http.StatusOK, resp)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
