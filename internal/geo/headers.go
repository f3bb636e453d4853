package geo

// Override headers. They carry the same meaning as the CDN headers but win over
// them, and are only honoured when test overrides are enabled.
const (
	HeaderTestCountry   = "X-Test-Country"
	HeaderTestRegion    = "X-Test-Region"
	HeaderTestCity      = "X-Test-City"
	HeaderTestTimezone  = "X-Test-Timezone"
	HeaderTestContinent = "X-Test-Continent"
	HeaderTestSegment   = "X-Test-Segment"
)

// Vercel edge headers. The city value is URL-encoded.
const (
	HeaderVercelCountry  = "X-Vercel-Ip-Country"
	HeaderVercelRegion   = "X-Vercel-Ip-Country-Region"
	HeaderVercelCity     = "X-Vercel-Ip-City"
	HeaderVercelTimezone = "X-Vercel-Ip-Timezone"
)

// Cloudflare headers.
const (
	HeaderCFCountry  = "Cf-Ipcountry"
	HeaderCFRegion   = "Cf-Region-Code"
	HeaderCFCity     = "Cf-Ipcity"
	HeaderCFTimezone = "Cf-Timezone"
)
