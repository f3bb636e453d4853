package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type visitorKey struct{}

// visitorCookieMaxAge keeps the visitor ID for a year.
const visitorCookieMaxAge = 365 * 24 * time.Hour

// WithVisitorID ensures every request carries a visitor ID. An existing valid
// cookie is reused; otherwise a new UUID is issued and set on the response.
func WithVisitorID(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(visitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), visitorKey{}, id)
			// a logger stored by an outer WithTraceLogger predates the ID
			if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
				ctx = context.WithValue(ctx, loggerKey{}, logger.With(zap.String("visitor_id", id)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorIDFromContext returns the visitor ID set by WithVisitorID, or "".
func VisitorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}
