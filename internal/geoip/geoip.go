package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// Record is what the database knows about an address. Missing fields are "".
type Record struct {
	Country  string
	Region   string
	City     string
	Timezone string
}

// GeoIP provides address lookup using a MaxMind DB or a JSON fallback.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []entry
}

type entry struct {
	net *net.IPNet
	rec Record
}

// Init opens the GeoIP2 database located at path. If the file is not a MaxMind
// database it is read as a JSON list of {net, country, region, city, timezone}
// CIDR entries. The returned error is the MaxMind open error when neither works.
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net      string `json:"net"`
		Country  string `json:"country"`
		Region   string `json:"region"`
		City     string `json:"city"`
		Timezone string `json:"timezone"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, entry{net: n, rec: Record{
				Country:  e.Country,
				Region:   e.Region,
				City:     e.City,
				Timezone: e.Timezone,
			}})
		}
	}
	return g, nil
}

// Lookup returns what is known about ip. The boolean is false when nothing
// matched or the database hasn't been initialised.
func (g *GeoIP) Lookup(ip net.IP) (Record, bool) {
	if g == nil || ip == nil {
		return Record{}, false
	}
	if g.db != nil {
		// City databases carry everything; country-only databases reject City.
		if rec, err := g.db.City(ip); err == nil && rec.Country.IsoCode != "" {
			r := Record{
				Country:  rec.Country.IsoCode,
				City:     rec.City.Names["en"],
				Timezone: rec.Location.TimeZone,
			}
			if len(rec.Subdivisions) > 0 {
				r.Region = rec.Subdivisions[0].IsoCode
			}
			return r, true
		}
		if rec, err := g.db.Country(ip); err == nil && rec.Country.IsoCode != "" {
			return Record{Country: rec.Country.IsoCode}, true
		}
	}
	for _, e := range g.fallback {
		if e.net.Contains(ip) {
			return e.rec, true
		}
	}
	return Record{}, false
}

// Country returns the ISO country code for ip, or "".
func (g *GeoIP) Country(ip net.IP) string {
	rec, _ := g.Lookup(ip)
	return rec.Country
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
