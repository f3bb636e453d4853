package geo

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/varunity/affinityserve/internal/geoip"
	"github.com/varunity/affinityserve/internal/models"
)

type stubLocator struct {
	rec geoip.Record
	ok  bool
}

func (s stubLocator) Lookup(net.IP) (geoip.Record, bool) { return s.rec, s.ok }

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		locator Locator
		h       http.Header
		want    models.Location
		source  Source
	}{
		{
			name: "vercel headers",
			h: headers(
				HeaderVercelCountry, "us",
				HeaderVercelRegion, "TX",
				HeaderVercelCity, "Austin",
				HeaderVercelTimezone, "America/Chicago",
			),
			want:   models.Location{Country: "United States", CountryCode: "US", Region: "TX", City: "Austin", Timezone: "America/Chicago", Continent: "North America"},
			source: SourceVercel,
		},
		{
			name:   "vercel city is url-decoded",
			h:      headers(HeaderVercelCountry, "US", HeaderVercelCity, "San%20Jos%C3%A9"),
			want:   models.Location{Country: "United States", CountryCode: "US", City: "San José", Timezone: DefaultTimezone, Continent: "North America"},
			source: SourceVercel,
		},
		{
			name:   "cloudflare when vercel absent",
			h:      headers(HeaderCFCountry, "GB", HeaderCFCity, "London", HeaderCFTimezone, "Europe/London"),
			want:   models.Location{Country: "United Kingdom", CountryCode: "GB", City: "London", Timezone: "Europe/London", Continent: "Europe"},
			source: SourceCloudflare,
		},
		{
			name:   "cloudflare unknown code is absent",
			h:      headers(HeaderCFCountry, "XX"),
			want:   models.Location{Country: "United States", CountryCode: "US", Timezone: DefaultTimezone, Continent: "North America"},
			source: SourceDefault,
		},
		{
			name: "override beats cdn",
			opts: Options{AllowOverrides: true},
			h: headers(
				HeaderTestCountry, "in",
				HeaderVercelCountry, "US",
				HeaderVercelCity, "Fairfax",
			),
			want:   models.Location{Country: "India", CountryCode: "IN", City: "Fairfax", Timezone: DefaultTimezone, Continent: "Asia"},
			source: SourceOverride,
		},
		{
			name:   "override ignored when disabled",
			h:      headers(HeaderTestCountry, "IN", HeaderVercelCountry, "US"),
			want:   models.Location{Country: "United States", CountryCode: "US", Timezone: DefaultTimezone, Continent: "North America"},
			source: SourceVercel,
		},
		{
			name:   "override continent",
			opts:   Options{AllowOverrides: true},
			h:      headers(HeaderTestCountry, "ZZ", HeaderTestContinent, "Antarctica"),
			want:   models.Location{Country: "ZZ", CountryCode: "ZZ", Timezone: DefaultTimezone, Continent: "Antarctica"},
			source: SourceOverride,
		},
		{
			name:    "geoip when no headers",
			locator: stubLocator{rec: geoip.Record{Country: "de", City: "Berlin", Timezone: "Europe/Berlin"}, ok: true},
			h:       http.Header{},
			want:    models.Location{Country: "Germany", CountryCode: "DE", City: "Berlin", Timezone: "Europe/Berlin", Continent: "Europe"},
			source:  SourceGeoIP,
		},
		{
			name:    "geoip ignored when headers present",
			locator: stubLocator{rec: geoip.Record{Country: "DE", City: "Berlin"}, ok: true},
			h:       headers(HeaderVercelCountry, "US"),
			want:    models.Location{Country: "United States", CountryCode: "US", Timezone: DefaultTimezone, Continent: "North America"},
			source:  SourceVercel,
		},
		{
			name:   "mock in development",
			opts:   Options{Development: true},
			h:      http.Header{},
			want:   models.Location{Country: "United States", CountryCode: "US", Region: "VA", City: "Fairfax", Timezone: DefaultTimezone, Continent: "North America"},
			source: SourceMock,
		},
		{
			name:   "no mock when a real signal exists",
			opts:   Options{Development: true},
			h:      headers(HeaderCFCountry, "FR"),
			want:   models.Location{Country: "France", CountryCode: "FR", Timezone: DefaultTimezone, Continent: "Europe"},
			source: SourceCloudflare,
		},
		{
			name:   "default uses home country",
			opts:   Options{HomeCountry: "ca"},
			h:      http.Header{},
			want:   models.Location{Country: "Canada", CountryCode: "CA", Timezone: DefaultTimezone, Continent: "North America"},
			source: SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.opts, tt.locator)
			got, src := r.Resolve(tt.h, net.ParseIP("203.0.113.7"))
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
			if src != tt.source {
				t.Errorf("source = %q, want %q", src, tt.source)
			}
		})
	}
}

func TestResolveNeverLeavesCountryEmpty(t *testing.T) {
	r := NewResolver(Options{}, nil)
	loc, _ := r.Resolve(nil, nil)
	if loc.CountryCode == "" || loc.Timezone == "" {
		t.Fatalf("expected defaults, got %+v", loc)
	}
}

func TestCountryTablesPassthrough(t *testing.T) {
	if got := CountryName("BR"); got != "BR" {
		t.Errorf("CountryName(BR) = %q, want passthrough", got)
	}
	if got := Continent("BR"); got != "South America" {
		t.Errorf("Continent(BR) = %q", got)
	}
	if got := Continent("QQ"); got != UnknownContinent {
		t.Errorf("Continent(QQ) = %q, want %q", got, UnknownContinent)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	if ip := ClientIP(req); ip.String() != "198.51.100.4" {
		t.Errorf("RemoteAddr ip = %v", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(req); ip.String() != "203.0.113.9" {
		t.Errorf("forwarded ip = %v", ip)
	}
}
