// Package revenue maps detection verdicts to the price a crawler
// operator owes for the visit. The calculation shape is fixed: a
// confidence-tier base rate, times a per-type multiplier, times
// contextual multipliers, rounded to four decimal places internally.
// The literal amounts are sample data and fully configurable.
package revenue

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Tier maps a minimum confidence to a base rate.
type Tier struct {
	MinConfidence int     `json:"min_confidence"`
	Rate          float64 `json:"rate"`
}

// Config holds the rate tables and contextual multipliers.
type Config struct {
	// Tiers are evaluated highest threshold first; the first tier at or
	// below the verdict confidence supplies the base rate.
	Tiers []Tier
	// TypeMultipliers scale the base rate per bot family. Unlisted
	// types use 1.0.
	TypeMultipliers map[string]float64
	// PeakStartHour/PeakEndHour bound the daily traffic peak (local
	// time of the request) during which PeakMultiplier applies.
	PeakStartHour  int
	PeakEndHour    int
	PeakMultiplier float64
	// HighValuePatterns are URL substrings marking premium content.
	HighValuePatterns   []string
	HighValueMultiplier float64
	// PriorityStep is added per publisher priority tier, capped at
	// PriorityCap. tier 0 means no adjustment.
	PriorityStep float64
	PriorityCap  float64
}

// DefaultConfig returns the sample rate tables.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{MinConfidence: 95, Rate: 5.00},
			{MinConfidence: 75, Rate: 3.50},
			{MinConfidence: 50, Rate: 2.00},
			{MinConfidence: 25, Rate: 1.00},
			{MinConfidence: 0, Rate: 0.50},
		},
		TypeMultipliers: map[string]float64{
			"openai":         1.5,
			"anthropic":      1.4,
			"google-ai":      1.3,
			"search-ai":      1.2,
			"ai-crawler":     1.2,
			"data-collector": 1.1,
			"seo":            0.9,
			"scraper":        0.8,
			"http-client":    0.8,
		},
		PeakStartHour:       8,
		PeakEndHour:         20,
		PeakMultiplier:      1.2,
		HighValuePatterns:   []string{"/pricing", "/research", "/docs", "/api/", "/premium"},
		HighValueMultiplier: 1.5,
		PriorityStep:        0.1,
		PriorityCap:         1.5,
	}
}

// Calculator computes the revenue owed for a detection. It is immutable
// after construction and safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator builds a Calculator, sorting tiers by threshold so
// lookup order never depends on configuration order.
func NewCalculator(cfg Config) *Calculator {
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultConfig().Tiers
	}
	tiers := make([]Tier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinConfidence > tiers[j].MinConfidence
	})
	cfg.Tiers = tiers
	return &Calculator{cfg: cfg}
}

// Calculate prices one detection. baseRate overrides the tier lookup
// when positive (curated per-signature rates). A non-bot verdict owes
// nothing regardless of context.
func (c *Calculator) Calculate(isBot bool, confidence int, botType string, baseRate float64, rc models.RequestContext) float64 {
	if !isBot || confidence <= 0 {
		return 0
	}

	rate := baseRate
	if rate <= 0 {
		rate = c.tierRate(confidence)
	}

	if mult, ok := c.cfg.TypeMultipliers[botType]; ok {
		rate *= mult
	}
	rate *= c.timeOfDayMultiplier(rc.Timestamp)
	rate *= c.urlMultiplier(rc.URL)
	rate *= c.priorityMultiplier(rc.Priority)

	return Round4(rate)
}

func (c *Calculator) tierRate(confidence int) float64 {
	for _, t := range c.cfg.Tiers {
		if confidence >= t.MinConfidence {
			return t.Rate
		}
	}
	return 0
}

func (c *Calculator) timeOfDayMultiplier(ts time.Time) float64 {
	if c.cfg.PeakMultiplier <= 0 || ts.IsZero() {
		return 1.0
	}
	h := ts.Hour()
	if h >= c.cfg.PeakStartHour && h < c.cfg.PeakEndHour {
		return c.cfg.PeakMultiplier
	}
	return 1.0
}

func (c *Calculator) urlMultiplier(url string) float64 {
	if c.cfg.HighValueMultiplier <= 0 || url == "" {
		return 1.0
	}
	lower := strings.ToLower(url)
	for _, p := range c.cfg.HighValuePatterns {
		if strings.Contains(lower, p) {
			return c.cfg.HighValueMultiplier
		}
	}
	return 1.0
}

func (c *Calculator) priorityMultiplier(tier int) float64 {
	if tier <= 0 || c.cfg.PriorityStep <= 0 {
		return 1.0
	}
	m := 1.0 + float64(tier)*c.cfg.PriorityStep
	if c.cfg.PriorityCap > 0 && m > c.cfg.PriorityCap {
		m = c.cfg.PriorityCap
	}
	return m
}

// Round4 rounds to the engine's internal 4-decimal precision. Display
// rounding to minor currency units is the caller's concern.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
