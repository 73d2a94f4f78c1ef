package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Detection pipeline metrics
	IncrementDetections(method string)
	IncrementVerdicts(action string)
	ObserveConfidence(confidence int)
	RecordPipelineLatency(duration time.Duration)
	IncrementPipelineTimeouts()

	// Revenue attribution metrics
	AddRevenue(botType string, amount float64)

	// Rate limiting metrics
	IncrementRateLimitRequests(keyClass string)
	IncrementRateLimitHits(keyClass string)

	// Backing store metrics
	IncrementStoreErrors(store string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Detection pipeline metrics
func (r *PrometheusRegistry) IncrementDetections(method string) {
	DetectionCount.WithLabelValues(method).Inc()
}

func (r *PrometheusRegistry) IncrementVerdicts(action string) {
	VerdictCount.WithLabelValues(action).Inc()
}

func (r *PrometheusRegistry) ObserveConfidence(confidence int) {
	ConfidenceHistogram.Observe(float64(confidence))
}

func (r *PrometheusRegistry) RecordPipelineLatency(duration time.Duration) {
	PipelineLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementPipelineTimeouts() {
	PipelineTimeouts.Inc()
}

// Revenue attribution metrics
func (r *PrometheusRegistry) AddRevenue(botType string, amount float64) {
	RevenueTotal.WithLabelValues(botType).Add(amount)
}

// Rate limiting metrics
func (r *PrometheusRegistry) IncrementRateLimitRequests(keyClass string) {
	RateLimitRequests.WithLabelValues(keyClass).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(keyClass string) {
	RateLimitHits.WithLabelValues(keyClass).Inc()
}

// Backing store metrics
func (r *PrometheusRegistry) IncrementStoreErrors(store string) {
	StoreErrors.WithLabelValues(store).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementDetections(method string)                                    {}
func (r *NoOpRegistry) IncrementVerdicts(action string)                                      {}
func (r *NoOpRegistry) ObserveConfidence(confidence int)                                     {}
func (r *NoOpRegistry) RecordPipelineLatency(duration time.Duration)                         {}
func (r *NoOpRegistry) IncrementPipelineTimeouts()                                           {}
func (r *NoOpRegistry) AddRevenue(botType string, amount float64)                            {}
func (r *NoOpRegistry) IncrementRateLimitRequests(keyClass string)                           {}
func (r *NoOpRegistry) IncrementRateLimitHits(keyClass string)                               {}
func (r *NoOpRegistry) IncrementStoreErrors(store string)                                    {}
