package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry is a MetricsRegistry for tests that records what
// was incremented so assertions can inspect it.
type MockMetricsRegistry struct {
	mu         sync.Mutex
	Detections map[string]int
	Verdicts   map[string]int
	Revenue    map[string]float64
	Timeouts   int
	RateLimitR map[string]int
	RateLimitH map[string]int
	StoreErrs  map[string]int
}

// NewMockMetricsRegistry creates an empty mock registry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Detections: make(map[string]int),
		Verdicts:   make(map[string]int),
		Revenue:    make(map[string]float64),
		RateLimitR: make(map[string]int),
		RateLimitH: make(map[string]int),
		StoreErrs:  make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementDetections(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Detections[method]++
}

func (m *MockMetricsRegistry) IncrementVerdicts(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verdicts[action]++
}

func (m *MockMetricsRegistry) ObserveConfidence(confidence int)             {}
func (m *MockMetricsRegistry) RecordPipelineLatency(duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementPipelineTimeouts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timeouts++
}

func (m *MockMetricsRegistry) AddRevenue(botType string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revenue[botType] += amount
}

func (m *MockMetricsRegistry) IncrementRateLimitRequests(keyClass string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitR[keyClass]++
}

func (m *MockMetricsRegistry) IncrementRateLimitHits(keyClass string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitH[keyClass]++
}

func (m *MockMetricsRegistry) IncrementStoreErrors(store string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoreErrs[store]++
}
