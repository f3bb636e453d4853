package api

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/personalization"
)

// VisitorContextHandler handles GET /api/visitor-context. It always answers
// 200: a panic while building falls back to the default context.
func (s *Server) VisitorContextHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "visitor_context"
	const method = "GET"

	ctx, span := tracer.Start(r.Context(), "VisitorContextHandler",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", "/api/visitor-context"),
		))
	defer span.End()
	logger := middleware.LoggerFromRequest(r, s.Logger)

	vc, err := s.buildContext(r.WithContext(ctx))
	if err != nil {
		logger.Error("build visitor context", zap.Error(err))
		vc = personalization.DefaultContext()
	}
	span.SetAttributes(
		attribute.String("site", vc.Site),
		attribute.String("segment", string(vc.Segment)),
		attribute.Bool("personalized", vc.Personalized),
	)

	// responses differ per visitor and must never be shared
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.Header().Set("Vary", "Cookie")
	writeJSON(w, http.StatusOK, vc)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func (s *Server) buildContext(r *http.Request) (vc models.VisitorContext, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if s.Engine == nil {
		return vc, fmt.Errorf("engine unavailable")
	}
	return s.Engine.Build(r.Context(), s.personalizationRequest(r)), nil
}
