package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments so tests can assert on them.
// Keys are the metric name followed by its labels, joined with "|".
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
	gauges map[string]float64
}

// NewMockMetricsRegistry returns an empty recording registry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		counts: make(map[string]int),
		gauges: make(map[string]float64),
	}
}

func (m *MockMetricsRegistry) inc(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key(name, labels)]++
}

// Count returns how many times the metric was incremented with the given labels.
func (m *MockMetricsRegistry) Count(name string, labels ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key(name, labels)]
}

// Gauge returns the last value set for the metric.
func (m *MockMetricsRegistry) Gauge(name string, labels ...string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[key(name, labels)]
}

func key(name string, labels []string) string {
	return strings.Join(append([]string{name}, labels...), "|")
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSegment(site, segment string) {
	m.inc("segment", site, segment)
}
func (m *MockMetricsRegistry) IncrementGeoSource(source string) { m.inc("geo_source", source) }
func (m *MockMetricsRegistry) IncrementInterestSource(source, interest string) {
	m.inc("interest_source", source, interest)
}
func (m *MockMetricsRegistry) IncrementReorder(outcome string)    { m.inc("reorder", outcome) }
func (m *MockMetricsRegistry) IncrementInteractions(kind string)  { m.inc("interactions", kind) }
func (m *MockMetricsRegistry) IncrementNewsletter(outcome string) { m.inc("newsletter", outcome) }
func (m *MockMetricsRegistry) IncrementRateLimitRequests(limiter string) {
	m.inc("ratelimit_requests", limiter)
}
func (m *MockMetricsRegistry) IncrementRateLimitHits(limiter string) { m.inc("ratelimit_hits", limiter) }
func (m *MockMetricsRegistry) IncrementVisitorStoreErrors(op string) {
	m.inc("visitor_store_errors", op)
}
func (m *MockMetricsRegistry) SetCatalogItems(site string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}
	m.gauges[key("catalog_items", []string{site})] = float64(count)
}
