package analytics

import (
	"context"
	"sync"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// MockAnalytics is a Service for tests that records verdicts in memory.
type MockAnalytics struct {
	mu       sync.Mutex
	Verdicts []models.Verdict
	Err      error
}

// RecordDetection appends the verdict, or returns the configured error.
func (m *MockAnalytics) RecordDetection(_ context.Context, v models.Verdict, _ models.RequestContext) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verdicts = append(m.Verdicts, v)
	return nil
}

// Recorded returns a snapshot of recorded verdicts.
func (m *MockAnalytics) Recorded() []models.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Verdict, len(m.Verdicts))
	copy(out, m.Verdicts)
	return out
}
