package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// visitor contexts built, labelled by site and resolved segment
	SegmentCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_segments_total",
			Help: "Total visitor contexts by segment",
		},
		[]string{"site", "segment"},
	)

	// which geo signal won for a request
	GeoSourceCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_geo_source_total",
			Help: "Total location resolutions by winning source",
		},
		[]string{"source"},
	)

	// which interest signal won for a request
	InterestSourceCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_interest_source_total",
			Help: "Total interest detections by source",
		},
		[]string{"source", "interest"},
	)

	// interactions tracked, labelled by content kind
	InteractionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_interactions_total",
			Help: "Total content interactions tracked",
		},
		[]string{"kind"},
	)

	// reorders labelled by whether the featured item was promoted
	ReorderCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_reorders_total",
			Help: "Total content reorders by outcome",
		},
		[]string{"outcome"},
	)

	// newsletter submissions labelled by outcome
	NewsletterCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_newsletter_submissions_total",
			Help: "Total newsletter submissions by outcome",
		},
		[]string{"outcome"},
	)

	// rate limit checks per limiter
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_ratelimit_requests_total",
			Help: "Total rate limit checks",
		},
		[]string{"limiter"},
	)

	// rate limit rejections per limiter
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_ratelimit_hits_total",
			Help: "Total rate limit rejections",
		},
		[]string{"limiter"},
	)

	// visitor store failures that were degraded to defaults
	VisitorStoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_visitor_store_errors_total",
			Help: "Total visitor store errors by operation",
		},
		[]string{"op"},
	)

	// content items loaded per site after the last reload
	CatalogItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "affinity_catalog_items",
			Help: "Content items in the current catalogue snapshot",
		},
		[]string{"site"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SegmentCount,
		GeoSourceCount,
		InterestSourceCount,
		InteractionCount,
		ReorderCount,
		NewsletterCount,
		RateLimitRequests,
		RateLimitHits,
		VisitorStoreErrors,
		CatalogItems,
	)
}
