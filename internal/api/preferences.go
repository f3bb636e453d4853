package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/personalization"
)

type preferencesRequest struct {
	OptOut  *bool   `json:"optOut"`
	Segment *string `json:"segment"`
}

// PreferencesHandler handles POST /api/preferences and returns the visitor
// context as it looks with the new settings.
func (s *Server) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "preferences"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	status := http.StatusOK
	defer func() {
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}()

	var body preferencesRequest
	if err := decodeBody(w, r, preferencesSchema, &body); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, err.Error())
		return
	}

	prefs := personalization.Preferences{OptOut: body.OptOut}
	if body.Segment != nil {
		seg := models.Segment("")
		if *body.Segment != "" {
			// the schema already restricts the vocabulary
			seg, _ = models.ParseSegment(*body.Segment)
		}
		prefs.Segment = &seg
	}

	req := s.personalizationRequest(r)
	err := s.Engine.SetPreferences(r.Context(), req, prefs)
	switch {
	case errors.Is(err, personalization.ErrOptOutDisabled):
		status = http.StatusForbidden
		writeError(w, status, err.Error())
		return
	case errors.Is(err, personalization.ErrNoVisitor):
		status = http.StatusBadRequest
		writeError(w, status, "visitor id required")
		return
	case err != nil:
		logger.Error("set preferences", zap.Error(err))
		status = http.StatusInternalServerError
		writeError(w, status, "internal server error")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	writeJSON(w, status, s.Engine.Build(r.Context(), req))
}
