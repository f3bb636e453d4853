package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/varunity/affinityserve/internal/geo"
)

func TestWithVisitorIDIssuesCookie(t *testing.T) {
	var seen string
	h := WithVisitorID("visitor_id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = VisitorIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected uuid visitor id, got %q", seen)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != seen {
		t.Fatalf("expected cookie with %q, got %+v", seen, cookies)
	}
}

func TestWithVisitorIDReusesCookie(t *testing.T) {
	id := uuid.NewString()
	var seen string
	h := WithVisitorID("visitor_id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = VisitorIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "visitor_id", Value: id})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != id {
		t.Fatalf("expected %q, got %q", id, seen)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("did not expect a new cookie")
	}
}

func TestWithVisitorIDReplacesGarbage(t *testing.T) {
	var seen string
	h := WithVisitorID("visitor_id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = VisitorIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "visitor_id", Value: "not-a-uuid"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid" || seen == "" {
		t.Fatalf("expected fresh id, got %q", seen)
	}
}

func TestWithTestOverrides(t *testing.T) {
	var got http.Header
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	})

	req := httptest.NewRequest(http.MethodGet, "/?test-geo=gb&test-city=San%20Francisco&test-region=ca&test-segment=federal", nil)
	WithTestOverrides(true)(capture).ServeHTTP(httptest.NewRecorder(), req)

	tests := map[string]string{
		geo.HeaderTestCountry: "GB",
		geo.HeaderTestCity:    "San Francisco",
		geo.HeaderTestRegion:  "CA",
		geo.HeaderTestSegment: "federal",
	}
	for h, want := range tests {
		if v := got.Get(h); v != want {
			t.Errorf("%s = %q, want %q", h, v, want)
		}
	}
}

func TestWithTestOverridesDisabledStripsHeaders(t *testing.T) {
	var got http.Header
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	})

	req := httptest.NewRequest(http.MethodGet, "/?test-geo=gb", nil)
	req.Header.Set(geo.HeaderTestCountry, "JP")
	req.Header.Set("Accept", "application/json")
	WithTestOverrides(false)(capture).ServeHTTP(httptest.NewRecorder(), req)

	if v := got.Get(geo.HeaderTestCountry); v != "" {
		t.Fatalf("expected override header stripped, got %q", v)
	}
	if got.Get("Accept") == "" {
		t.Fatalf("unrelated headers must survive")
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	fallback := zap.NewNop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := LoggerFromRequest(req, fallback); got != fallback {
		t.Fatalf("expected fallback logger for untraced request")
	}
}

func TestWithTraceLoggerAddsVisitorLogger(t *testing.T) {
	fallback := zap.NewNop()
	var got *zap.Logger
	h := WithVisitorID("visitor_id", false)(WithTraceLogger(fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LoggerFromRequest(r, fallback)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil || got == fallback {
		t.Fatalf("expected a request-scoped logger")
	}
}

// newRouter mirrors the server wiring: the trace logger on the root router and
// the visitor cookie on the /api subrouter.
func newRouter(logger *zap.Logger, outer func(http.Handler) http.Handler) *mux.Router {
	r := mux.NewRouter()
	if outer != nil {
		r.Use(outer)
	}
	r.Use(WithTraceLogger(logger))
	api := r.PathPrefix("/api").Subrouter()
	api.Use(WithVisitorID("visitor_id", false))
	api.HandleFunc("/visitor-context", func(w http.ResponseWriter, r *http.Request) {
		LoggerFromRequest(r, logger).Info("handled")
	})
	return r
}

func withSpan(next http.Handler) http.Handler {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(trace.ContextWithSpanContext(r.Context(), sc)))
	})
}

func TestRouterLogsVisitorID(t *testing.T) {
	tests := []struct {
		name   string
		outer  func(http.Handler) http.Handler
		traced bool
	}{
		{name: "untraced", outer: nil},
		{name: "traced", outer: withSpan, traced: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			r := newRouter(zap.New(core), tt.outer)

			id := uuid.NewString()
			req := httptest.NewRequest(http.MethodGet, "/api/visitor-context", nil)
			req.AddCookie(&http.Cookie{Name: "visitor_id", Value: id})
			r.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("handled").All()
			if len(entries) != 1 {
				t.Fatalf("expected one log entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["visitor_id"] != id {
				t.Fatalf("expected visitor_id %s, got %v", id, fields)
			}
			if _, ok := fields["trace_id"]; ok != tt.traced {
				t.Fatalf("trace_id present=%v, want %v", ok, tt.traced)
			}
		})
	}
}
