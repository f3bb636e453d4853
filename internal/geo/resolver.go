package geo

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/varunity/affinityserve/internal/geoip"
	"github.com/varunity/affinityserve/internal/models"
)

// Source names the signal that supplied the country for a Location.
type Source string

const (
	SourceOverride   Source = "override"
	SourceVercel     Source = "vercel"
	SourceCloudflare Source = "cloudflare"
	SourceGeoIP      Source = "geoip"
	SourceMock       Source = "mock"
	SourceDefault    Source = "default"
)

// DefaultTimezone is used when no signal carries a timezone.
const DefaultTimezone = "America/New_York"

// mockRecord stands in for a visitor during local development.
var mockRecord = geoip.Record{
	Country:  "US",
	Region:   "VA",
	City:     "Fairfax",
	Timezone: DefaultTimezone,
}

// Locator looks up an address in a GeoIP database. *geoip.GeoIP satisfies it.
type Locator interface {
	Lookup(ip net.IP) (geoip.Record, bool)
}

// Options configures a Resolver.
type Options struct {
	// HomeCountry is used when nothing else is known.
	HomeCountry string
	// AllowOverrides enables the X-Test-* headers.
	AllowOverrides bool
	// Development enables the mock record when no real signal is present.
	Development bool
}

// Resolver derives a Location from request signals. It never fails: missing
// data degrades to defaults.
type Resolver struct {
	opts    Options
	locator Locator
}

// NewResolver returns a Resolver. locator may be nil.
func NewResolver(opts Options, locator Locator) *Resolver {
	if opts.HomeCountry == "" {
		opts.HomeCountry = "US"
	}
	opts.HomeCountry = strings.ToUpper(opts.HomeCountry)
	return &Resolver{opts: opts, locator: locator}
}

// layer is one header family after normalisation.
type layer struct {
	source   Source
	country  string
	region   string
	city     string
	timezone string
}

// Resolve builds the Location for the given headers and client address. Each
// field is taken from the highest-precedence signal that has it: overrides,
// then Vercel, then Cloudflare, then the GeoIP database.
func (r *Resolver) Resolve(h http.Header, ip net.IP) (models.Location, Source) {
	var layers []layer
	if r.opts.AllowOverrides {
		layers = append(layers, layer{
			source:   SourceOverride,
			country:  countryCode(h.Get(HeaderTestCountry)),
			region:   strings.TrimSpace(h.Get(HeaderTestRegion)),
			city:     strings.TrimSpace(h.Get(HeaderTestCity)),
			timezone: strings.TrimSpace(h.Get(HeaderTestTimezone)),
		})
	}
	layers = append(layers,
		layer{
			source:   SourceVercel,
			country:  countryCode(h.Get(HeaderVercelCountry)),
			region:   strings.TrimSpace(h.Get(HeaderVercelRegion)),
			city:     decodeCity(h.Get(HeaderVercelCity)),
			timezone: strings.TrimSpace(h.Get(HeaderVercelTimezone)),
		},
		layer{
			source:   SourceCloudflare,
			country:  countryCode(h.Get(HeaderCFCountry)),
			region:   strings.TrimSpace(h.Get(HeaderCFRegion)),
			city:     strings.TrimSpace(h.Get(HeaderCFCity)),
			timezone: strings.TrimSpace(h.Get(HeaderCFTimezone)),
		},
	)

	source := SourceDefault
	country := ""
	for _, l := range layers {
		if l.country != "" {
			country, source = l.country, l.source
			break
		}
	}

	// The database and the mock only fill in when headers carry no country.
	if country == "" && r.locator != nil {
		if rec, ok := r.locator.Lookup(ip); ok && countryCode(rec.Country) != "" {
			layers = append(layers, fromRecord(SourceGeoIP, rec))
			country, source = countryCode(rec.Country), SourceGeoIP
		}
	}
	if country == "" && r.opts.Development {
		layers = append(layers, fromRecord(SourceMock, mockRecord))
		country, source = mockRecord.Country, SourceMock
	}
	if country == "" {
		country = r.opts.HomeCountry
	}

	loc := models.Location{
		CountryCode: country,
		Country:     CountryName(country),
		Continent:   Continent(country),
		Timezone:    DefaultTimezone,
	}
	loc.Region = first(layers, func(l layer) string { return l.region })
	loc.City = first(layers, func(l layer) string { return l.city })
	if tz := first(layers, func(l layer) string { return l.timezone }); tz != "" {
		loc.Timezone = tz
	}
	if r.opts.AllowOverrides {
		if c := strings.TrimSpace(h.Get(HeaderTestContinent)); c != "" {
			loc.Continent = c
		}
	}
	return loc, source
}

func fromRecord(src Source, rec geoip.Record) layer {
	return layer{
		source:   src,
		country:  countryCode(rec.Country),
		region:   rec.Region,
		city:     rec.City,
		timezone: rec.Timezone,
	}
}

func first(layers []layer, field func(layer) string) string {
	for _, l := range layers {
		if v := field(l); v != "" {
			return v
		}
	}
	return ""
}

// countryCode normalises a header value. Cloudflare's XX (unknown) and T1 (Tor)
// pseudo-codes count as absent.
func countryCode(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	switch v {
	case "XX", "T1":
		return ""
	}
	return v
}

func decodeCity(v string) string {
	v = strings.TrimSpace(v)
	if d, err := url.PathUnescape(v); err == nil {
		return d
	}
	return v
}

// ClientIP returns the caller's address: the first X-Forwarded-For entry when
// present, otherwise RemoteAddr without its port.
func ClientIP(r *http.Request) net.IP {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
	} else if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = ipStr[:idx]
	}
	return net.ParseIP(strings.TrimSpace(ipStr))
}
