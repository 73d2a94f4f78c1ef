package detect

import (
	"math"
	"regexp"
	"strings"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Entropy stage weights and bounds.
const (
	lengthAnomalyScore  = 20
	lowEntropyScore     = 25
	noBrowserTokenScore = 30
	noVersionScore      = 15

	minNormalLength  = 20
	maxNormalLength  = 500
	entropyFloor     = 3.0
	entropyThreshold = 50
	entropyMaxConf   = 95
)

var browserTokens = []string{"mozilla", "chrome", "safari", "firefox", "edge"}

var versionPattern = regexp.MustCompile(`\d+\.\d+`)

// EntropyScorer is the statistical stage: it scores the shape of the
// user-agent string itself, catching templated or generated agents that
// match no table.
type EntropyScorer struct{}

// NewEntropyScorer constructs an EntropyScorer.
func NewEntropyScorer() *EntropyScorer { return &EntropyScorer{} }

// Score composes four shape heuristics and fires above the threshold.
// Confidence is capped below certainty since none of the signals is
// individually conclusive.
func (s *EntropyScorer) Score(userAgent string) *models.DetectionResult {
	if userAgent == "" {
		return nil
	}
	score := s.Weight(userAgent)
	if score <= entropyThreshold {
		return nil
	}
	if score > entropyMaxConf {
		score = entropyMaxConf
	}
	return &models.DetectionResult{
		Method:     models.MethodEntropy,
		BotType:    "anomalous-agent",
		Confidence: score,
	}
}

// Weight returns the raw suspicion score before thresholding. Exposed
// so callers can compare agents without the firing cutoff.
func (s *EntropyScorer) Weight(userAgent string) int {
	ua := strings.ToLower(userAgent)

	score := 0
	if len(userAgent) < minNormalLength || len(userAgent) > maxNormalLength {
		score += lengthAnomalyScore
	}
	if ShannonEntropy(userAgent) < entropyFloor {
		score += lowEntropyScore
	}
	if !containsAny(ua, browserTokens) {
		score += noBrowserTokenScore
	}
	if !versionPattern.MatchString(userAgent) {
		score += noVersionScore
	}
	return score
}

// ShannonEntropy computes H = -Σ p·log2(p) over the byte frequency
// distribution of s. The empty string has zero entropy.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	length := float64(len(s))
	entropy := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
