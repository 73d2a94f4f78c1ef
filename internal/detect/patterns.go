package detect

import (
	"strings"

	"github.com/avct/uasurfer"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// patternCategory groups indicator substrings that suggest automation
// without identifying a specific operator.
type patternCategory struct {
	name       string
	confidence int
	indicators []string
}

// patternCategories are scanned exhaustively; unlike the signature
// table, the highest-confidence hit wins regardless of order.
var patternCategories = []patternCategory{
	{name: "ai_keywords", confidence: 75, indicators: []string{
		"gpt", "llm", "ai-agent", "aibot", "ai_bot", "train", "dataset", "embedding",
	}},
	{name: "headless", confidence: 72, indicators: []string{
		"headless", "phantom", "slimerjs", "splash", "electron",
	}},
	{name: "automation", confidence: 68, indicators: []string{
		"automation", "webdriver", "chromedriver", "geckodriver", "cypress", "robot",
	}},
	{name: "scraping", confidence: 65, indicators: []string{
		"scrape", "scraper", "crawler", "crawl", "spider", "harvest", "extract", "fetcher",
	}},
	{name: "research", confidence: 55, indicators: []string{
		"research", "academic", "university", "archive", "study",
	}},
	{name: "generic_bot", confidence: 50, indicators: []string{
		"bot/", "bot;", " bot ", "-bot", "bot)",
	}},
}

// PatternAnalyzer scores suspicious-but-unlisted user agents with
// keyword heuristics, cross-checked against uasurfer's own bot parser.
type PatternAnalyzer struct{}

// NewPatternAnalyzer constructs a PatternAnalyzer.
func NewPatternAnalyzer() *PatternAnalyzer { return &PatternAnalyzer{} }

// Analyze returns the highest-confidence matching category, or nil when
// the user agent trips none of them. When the keyword tables stay quiet
// but uasurfer still classifies the agent as a bot, a lower-confidence
// generic detection is returned so unlisted crawlers are not invisible.
func (a *PatternAnalyzer) Analyze(userAgent string) *models.DetectionResult {
	if userAgent == "" {
		return nil
	}
	ua := strings.ToLower(userAgent)

	var best *models.DetectionResult
	for _, cat := range patternCategories {
		if !containsAny(ua, cat.indicators) {
			continue
		}
		if best == nil || cat.confidence > best.Confidence {
			best = &models.DetectionResult{
				Method:     models.MethodPattern,
				BotType:    cat.name,
				Confidence: models.Clamp(cat.confidence),
			}
		}
	}
	if best != nil {
		return best
	}

	if uasurfer.Parse(userAgent).IsBot() {
		return &models.DetectionResult{
			Method:     models.MethodPattern,
			BotType:    "generic_bot",
			Confidence: 45,
		}
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
