package detect

import (
	"strings"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Missing-header weights. Real browsers send all three on navigation
// requests; scripted clients usually send none.
const (
	missingAcceptLanguageScore = 20
	missingAcceptEncodingScore = 15
	missingAcceptScore         = 20
	ajaxDiscount               = 15
)

// DefaultHeaderThreshold is the score a request must exceed or meet
// before the header stage fires.
const DefaultHeaderThreshold = 40

// HeaderAnalyzer scores the absence of standard browser headers.
type HeaderAnalyzer struct {
	threshold int
}

// NewHeaderAnalyzer builds an analyzer firing at or above threshold.
// Non-positive thresholds fall back to the default.
func NewHeaderAnalyzer(threshold int) *HeaderAnalyzer {
	if threshold <= 0 {
		threshold = DefaultHeaderThreshold
	}
	return &HeaderAnalyzer{threshold: threshold}
}

// Analyze sums missing-header indicators over the request's headers.
// AJAX requests get a discount since fetch/XHR legitimately omit
// navigation headers. Returns nil below the firing threshold.
func (a *HeaderAnalyzer) Analyze(headers map[string]string) *models.DetectionResult {
	norm := make(map[string]string, len(headers))
	for k, v := range headers {
		norm[strings.ToLower(k)] = v
	}

	score := 0
	if norm["accept-language"] == "" {
		score += missingAcceptLanguageScore
	}
	if norm["accept-encoding"] == "" {
		score += missingAcceptEncodingScore
	}
	if norm["accept"] == "" {
		score += missingAcceptScore
	}
	if strings.EqualFold(norm["x-requested-with"], "XMLHttpRequest") {
		score -= ajaxDiscount
	}

	score = models.Clamp(score)
	if score < a.threshold {
		return nil
	}
	return &models.DetectionResult{
		Method:     models.MethodHeaders,
		BotType:    "missing-headers",
		Confidence: score,
	}
}
