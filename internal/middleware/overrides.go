package middleware

import (
	"net/http"
	"strings"

	"github.com/varunity/affinityserve/internal/geo"
)

// testParams maps developer query parameters onto the override headers the
// geo resolver and engine understand.
var testParams = []struct {
	param  string
	header string
	upper  bool
}{
	{"test-geo", geo.HeaderTestCountry, true},
	{"test-region", geo.HeaderTestRegion, true},
	{"test-city", geo.HeaderTestCity, false},
	{"test-timezone", geo.HeaderTestTimezone, false},
	{"test-segment", geo.HeaderTestSegment, false},
}

// WithTestOverrides translates ?test-geo, ?test-region, ?test-city,
// ?test-timezone and ?test-segment into X-Test-* request headers. When
// disabled, any X-Test-* headers sent by the client are stripped so they cannot
// steer personalization in production.
func WithTestOverrides(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				for name := range r.Header {
					if strings.HasPrefix(http.CanonicalHeaderKey(name), "X-Test-") {
						r.Header.Del(name)
					}
				}
				next.ServeHTTP(w, r)
				return
			}
			q := r.URL.Query()
			for _, p := range testParams {
				v := strings.TrimSpace(q.Get(p.param))
				if v == "" {
					continue
				}
				if p.upper {
					v = strings.ToUpper(v)
				}
				r.Header.Set(p.header, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
