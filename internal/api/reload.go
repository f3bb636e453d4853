package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/middleware"
)

// ReloadHandler refreshes the site and content catalogue and tells the other
// instances to do the same.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reload"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	if err := s.Reload(r.Context()); err != nil {
		logger.Error("reload failed", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	s.notifyUpdate(r.Context(), "catalog", "reload")

	s.Metrics.IncrementRequests(endpoint, method, "204")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}
