package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/logic/reorder"
	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
)

// ContentHandler handles GET /api/content?range=1,3&exclude=a,b&kind=blog.
func (s *Server) ContentHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "content"
	const method = "GET"
	logger := middleware.LoggerFromRequest(r, s.Logger)
	q := r.URL.Query()

	rng, err := reorder.ParseRange(q.Get("range"), reorder.DefaultRange)
	if err != nil {
		logger.Debug("bad range", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var kind models.ContentKind
	switch k := models.ContentKind(strings.ToLower(q.Get("kind"))); k {
	case "", models.KindBlog, models.KindProject:
		kind = k
	default:
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	var exclude []string
	for _, slug := range strings.Split(q.Get("exclude"), ",") {
		if slug = strings.TrimSpace(slug); slug != "" {
			exclude = append(exclude, slug)
		}
	}

	res := s.Engine.Content(r.Context(), s.personalizationRequest(r), rng, exclude, kind)
	if res.Items == nil {
		res.Items = []models.ContentItem{}
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	writeJSON(w, http.StatusOK, res)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
