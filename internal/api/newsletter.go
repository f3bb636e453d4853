package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/geo"
	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/newsletter"
)

type newsletterRequest struct {
	Email    string `json:"email"`
	Honeypot string `json:"honeypot"`
	Segment  string `json:"segment"`
}

type newsletterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewsletterHandler handles POST /api/newsletter.
func (s *Server) NewsletterHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "newsletter"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	status := http.StatusOK
	defer func() {
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}()

	var body newsletterRequest
	if err := decodeBody(w, r, newsletterSchema, &body); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "Invalid submission")
		return
	}

	client := "unknown"
	if ip := geo.ClientIP(r); ip != nil {
		client = ip.String()
	}
	seg, _ := models.ParseSegment(body.Segment)

	err := s.Newsletter.Subscribe(r.Context(), newsletter.Submission{
		Email:      body.Email,
		Honeypot:   body.Honeypot,
		Segment:    seg,
		ClientAddr: client,
		UserAgent:  r.UserAgent(),
		VisitorID:  middleware.VisitorIDFromContext(r.Context()),
	})
	switch {
	case err == nil:
		writeJSON(w, status, newsletterResponse{Success: true, Message: "Successfully subscribed!"})
	case errors.Is(err, newsletter.ErrHoneypot):
		status = http.StatusBadRequest
		writeError(w, status, "Invalid submission")
	case errors.Is(err, newsletter.ErrInvalidEmail):
		status = http.StatusBadRequest
		writeError(w, status, "Invalid email address")
	case errors.Is(err, newsletter.ErrRateLimited):
		status = http.StatusTooManyRequests
		writeError(w, status, "Please wait before submitting again")
	case errors.Is(err, newsletter.ErrDuplicate):
		status = http.StatusBadRequest
		writeError(w, status, "Email already subscribed")
	default:
		logger.Error("newsletter subscription", zap.Error(err))
		status = http.StatusInternalServerError
		writeError(w, status, "Internal server error")
	}
}
