package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it at construction so tests can swap in a NoOp or Mock.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Personalization decisions
	IncrementSegment(site, segment string)
	IncrementGeoSource(source string)
	IncrementInterestSource(source, interest string)
	IncrementReorder(outcome string)

	// Interaction tracking
	IncrementInteractions(kind string)

	// Newsletter metrics
	IncrementNewsletter(outcome string)
	IncrementRateLimitRequests(limiter string)
	IncrementRateLimitHits(limiter string)

	// Storage metrics
	IncrementVisitorStoreErrors(op string)
	SetCatalogItems(site string, count int)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Personalization decisions
func (r *PrometheusRegistry) IncrementSegment(site, segment string) {
	SegmentCount.WithLabelValues(site, segment).Inc()
}

func (r *PrometheusRegistry) IncrementGeoSource(source string) {
	GeoSourceCount.WithLabelValues(source).Inc()
}

func (r *PrometheusRegistry) IncrementInterestSource(source, interest string) {
	InterestSourceCount.WithLabelValues(source, interest).Inc()
}

func (r *PrometheusRegistry) IncrementReorder(outcome string) {
	ReorderCount.WithLabelValues(outcome).Inc()
}

// Interaction tracking
func (r *PrometheusRegistry) IncrementInteractions(kind string) {
	InteractionCount.WithLabelValues(kind).Inc()
}

// Newsletter metrics
func (r *PrometheusRegistry) IncrementNewsletter(outcome string) {
	NewsletterCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitRequests(limiter string) {
	RateLimitRequests.WithLabelValues(limiter).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(limiter string) {
	RateLimitHits.WithLabelValues(limiter).Inc()
}

// Storage metrics
func (r *PrometheusRegistry) IncrementVisitorStoreErrors(op string) {
	VisitorStoreErrors.WithLabelValues(op).Inc()
}

func (r *PrometheusRegistry) SetCatalogItems(site string, count int) {
	CatalogItems.WithLabelValues(site).Set(float64(count))
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSegment(site, segment string)                                {}
func (r *NoOpRegistry) IncrementGeoSource(source string)                                     {}
func (r *NoOpRegistry) IncrementInterestSource(source, interest string)                      {}
func (r *NoOpRegistry) IncrementReorder(outcome string)                                      {}
func (r *NoOpRegistry) IncrementInteractions(kind string)                                    {}
func (r *NoOpRegistry) IncrementNewsletter(outcome string)                                   {}
func (r *NoOpRegistry) IncrementRateLimitRequests(limiter string)                            {}
func (r *NoOpRegistry) IncrementRateLimitHits(limiter string)                                {}
func (r *NoOpRegistry) IncrementVisitorStoreErrors(op string)                                {}
func (r *NoOpRegistry) SetCatalogItems(site string, count int)                               {}
