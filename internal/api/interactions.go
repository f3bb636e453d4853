package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/logic/device"
	"github.com/varunity/affinityserve/internal/logic/intent"
	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/personalization"
)

type interactionRequest struct {
	Path string             `json:"path"`
	Slug string             `json:"slug"`
	Kind models.ContentKind `json:"kind"`
	Tags []string           `json:"tags"`
}

// InteractionHandler handles POST /api/interactions. A page path is turned
// into an interaction with slug-inferred tags; an explicit slug is used as
// given. Bots are acknowledged but not tracked.
func (s *Server) InteractionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "interactions"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	status := http.StatusOK
	defer func() {
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}()

	var body interactionRequest
	if err := decodeBody(w, r, interactionSchema, &body); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, err.Error())
		return
	}

	ia, ok := toInteraction(body)
	if !ok {
		status = http.StatusBadRequest
		writeError(w, status, "path is not a content page")
		return
	}

	if device.IsBot(r.UserAgent()) {
		status = http.StatusAccepted
		writeJSON(w, status, personalization.TrackResult{})
		return
	}

	req := s.personalizationRequest(r)
	if req.VisitorID == "" {
		status = http.StatusBadRequest
		writeError(w, status, "visitor id required")
		return
	}
	if !s.Interactions.Allow(req.VisitorID) {
		status = http.StatusTooManyRequests
		writeError(w, status, "too many interactions")
		return
	}

	res, err := s.Engine.Track(r.Context(), req, ia)
	switch {
	case errors.Is(err, personalization.ErrNoVisitor):
		status = http.StatusServiceUnavailable
		writeError(w, status, "visitor state unavailable")
		return
	case err != nil:
		logger.Error("track interaction", zap.Error(err))
		status = http.StatusInternalServerError
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, status, res)
}

func toInteraction(body interactionRequest) (models.Interaction, bool) {
	if body.Slug == "" {
		return intent.InteractionFromPath(body.Path)
	}
	ia := models.Interaction{Slug: body.Slug, Kind: body.Kind, Tags: body.Tags}
	if ia.Kind == "" {
		ia.Kind = models.KindBlog
	}
	if len(ia.Tags) == 0 {
		ia.Tags = intent.InferTags(ia.Slug)
	}
	return ia, true
}
