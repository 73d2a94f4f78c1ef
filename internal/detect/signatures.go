package detect

import (
	"strings"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// defaultSignatures is the built-in table of known crawler identities.
// Order matters: the matcher returns the first hit, so specific or
// higher-value patterns sit above generic ones (applebot-extended before
// applebot, google-extended before googlebot, and so on).
var defaultSignatures = []models.BotSignature{
	// AI training and assistant crawlers. These carry the highest
	// curated rates because their operators monetize the content.
	{Pattern: "oai-searchbot", Company: "OpenAI", Category: "openai", Confidence: 96, RevenueRate: 4.50},
	{Pattern: "chatgpt-user", Company: "OpenAI", Category: "openai", Confidence: 95, RevenueRate: 4.00},
	{Pattern: "gptbot", Company: "OpenAI", Category: "openai", Confidence: 98, RevenueRate: 5.00},
	{Pattern: "claude-web", Company: "Anthropic", Category: "anthropic", Confidence: 95, RevenueRate: 4.00},
	{Pattern: "claude-searchbot", Company: "Anthropic", Category: "anthropic", Confidence: 95, RevenueRate: 4.00},
	{Pattern: "claudebot", Company: "Anthropic", Category: "anthropic", Confidence: 98, RevenueRate: 4.50},
	{Pattern: "anthropic-ai", Company: "Anthropic", Category: "anthropic", Confidence: 97, RevenueRate: 4.50},
	{Pattern: "google-extended", Company: "Google", Category: "google-ai", Confidence: 96, RevenueRate: 4.00},
	{Pattern: "googleother", Company: "Google", Category: "google-ai", Confidence: 90, RevenueRate: 2.50},
	{Pattern: "google-cloudvertexbot", Company: "Google", Category: "google-ai", Confidence: 94, RevenueRate: 3.50},
	{Pattern: "perplexity-user", Company: "Perplexity", Category: "search-ai", Confidence: 93, RevenueRate: 3.50},
	{Pattern: "perplexitybot", Company: "Perplexity", Category: "search-ai", Confidence: 96, RevenueRate: 4.00},
	{Pattern: "duckassistbot", Company: "DuckDuckGo", Category: "search-ai", Confidence: 93, RevenueRate: 3.00},
	{Pattern: "youbot", Company: "You.com", Category: "search-ai", Confidence: 92, RevenueRate: 3.00},
	{Pattern: "mistralai-user", Company: "Mistral", Category: "search-ai", Confidence: 93, RevenueRate: 3.50},
	{Pattern: "bytespider", Company: "ByteDance", Category: "ai-crawler", Confidence: 95, RevenueRate: 3.50},
	{Pattern: "tiktokspider", Company: "ByteDance", Category: "ai-crawler", Confidence: 93, RevenueRate: 3.00},
	{Pattern: "cohere-training-data-crawler", Company: "Cohere", Category: "ai-crawler", Confidence: 96, RevenueRate: 3.00},
	{Pattern: "cohere-ai", Company: "Cohere", Category: "ai-crawler", Confidence: 94, RevenueRate: 3.00},
	{Pattern: "ai2bot-dolma", Company: "Allen Institute", Category: "ai-crawler", Confidence: 93, RevenueRate: 2.50},
	{Pattern: "ai2bot", Company: "Allen Institute", Category: "ai-crawler", Confidence: 92, RevenueRate: 2.50},
	{Pattern: "applebot-extended", Company: "Apple", Category: "ai-crawler", Confidence: 94, RevenueRate: 3.50},
	{Pattern: "applebot", Company: "Apple", Category: "search", Confidence: 88, RevenueRate: 2.00},
	{Pattern: "meta-externalfetcher", Company: "Meta", Category: "social", Confidence: 91, RevenueRate: 2.50},
	{Pattern: "meta-externalagent", Company: "Meta", Category: "ai-crawler", Confidence: 94, RevenueRate: 3.00},
	{Pattern: "facebookbot", Company: "Meta", Category: "social", Confidence: 90, RevenueRate: 2.50},
	{Pattern: "facebookexternalhit", Company: "Meta", Category: "social", Confidence: 85, RevenueRate: 1.50},
	{Pattern: "amazonbot", Company: "Amazon", Category: "ai-crawler", Confidence: 92, RevenueRate: 2.50},
	{Pattern: "novaact", Company: "Amazon", Category: "ai-crawler", Confidence: 90, RevenueRate: 2.50},
	{Pattern: "linerbot", Company: "Liner", Category: "search-ai", Confidence: 90, RevenueRate: 2.50},
	{Pattern: "petalbot", Company: "Huawei", Category: "search-ai", Confidence: 88, RevenueRate: 1.50},

	// Data collectors and commercial aggregators.
	{Pattern: "ccbot", Company: "Common Crawl", Category: "data-collector", Confidence: 95, RevenueRate: 3.00},
	{Pattern: "diffbot", Company: "Diffbot", Category: "data-collector", Confidence: 93, RevenueRate: 3.00},
	{Pattern: "omgilibot", Company: "Webz.io", Category: "data-collector", Confidence: 91, RevenueRate: 2.00},
	{Pattern: "omgili", Company: "Webz.io", Category: "data-collector", Confidence: 90, RevenueRate: 2.00},
	{Pattern: "webzio-extended", Company: "Webz.io", Category: "data-collector", Confidence: 91, RevenueRate: 2.00},
	{Pattern: "imagesiftbot", Company: "ImageSift", Category: "data-collector", Confidence: 90, RevenueRate: 2.00},
	{Pattern: "img2dataset", Company: "LAION", Category: "data-collector", Confidence: 92, RevenueRate: 2.00},
	{Pattern: "magpie-crawler", Company: "Brandwatch", Category: "data-collector", Confidence: 89, RevenueRate: 1.50},
	{Pattern: "timpibot", Company: "Timpi", Category: "data-collector", Confidence: 88, RevenueRate: 1.50},
	{Pattern: "velenpublicwebcrawler", Company: "Velen", Category: "data-collector", Confidence: 88, RevenueRate: 1.50},
	{Pattern: "iaskspider", Company: "iAsk", Category: "search-ai", Confidence: 88, RevenueRate: 1.50},
	{Pattern: "kangaroo bot", Company: "Kangaroo", Category: "data-collector", Confidence: 87, RevenueRate: 1.50},
	{Pattern: "turnitinbot", Company: "Turnitin", Category: "data-collector", Confidence: 88, RevenueRate: 1.50},
	{Pattern: "zoominfobot", Company: "ZoomInfo", Category: "data-collector", Confidence: 87, RevenueRate: 1.00},
	{Pattern: "grapeshot", Company: "Oracle", Category: "data-collector", Confidence: 85, RevenueRate: 1.00},

	// SEO and marketing crawlers. Lower value, still billable.
	{Pattern: "semrushbot", Company: "Semrush", Category: "seo", Confidence: 88, RevenueRate: 1.00},
	{Pattern: "ahrefsbot", Company: "Ahrefs", Category: "seo", Confidence: 88, RevenueRate: 1.00},
	{Pattern: "dataforseobot", Company: "DataForSEO", Category: "seo", Confidence: 87, RevenueRate: 1.00},
	{Pattern: "serpstatbot", Company: "Serpstat", Category: "seo", Confidence: 86, RevenueRate: 0.75},
	{Pattern: "mj12bot", Company: "Majestic", Category: "seo", Confidence: 86, RevenueRate: 0.75},
	{Pattern: "dotbot", Company: "Moz", Category: "seo", Confidence: 86, RevenueRate: 0.75},
	{Pattern: "blexbot", Company: "WebMeUp", Category: "seo", Confidence: 85, RevenueRate: 0.75},
	{Pattern: "seekportbot", Company: "Seekport", Category: "seo", Confidence: 85, RevenueRate: 0.75},

	// Automation frameworks and scrapers.
	{Pattern: "headlesschrome", Company: "", Category: "automation", Confidence: 90, RevenueRate: 1.25},
	{Pattern: "phantomjs", Company: "", Category: "automation", Confidence: 90, RevenueRate: 1.00},
	{Pattern: "puppeteer", Company: "", Category: "automation", Confidence: 90, RevenueRate: 1.25},
	{Pattern: "playwright", Company: "", Category: "automation", Confidence: 90, RevenueRate: 1.25},
	{Pattern: "selenium", Company: "", Category: "automation", Confidence: 88, RevenueRate: 1.25},
	{Pattern: "scrapy", Company: "", Category: "scraper", Confidence: 90, RevenueRate: 1.00},

	// Plain HTTP clients. Generic, so they sit at the bottom.
	{Pattern: "python-requests", Company: "", Category: "http-client", Confidence: 85, RevenueRate: 0.75},
	{Pattern: "python-urllib", Company: "", Category: "http-client", Confidence: 85, RevenueRate: 0.75},
	{Pattern: "aiohttp", Company: "", Category: "http-client", Confidence: 84, RevenueRate: 0.75},
	{Pattern: "go-http-client", Company: "", Category: "http-client", Confidence: 84, RevenueRate: 0.75},
	{Pattern: "libwww-perl", Company: "", Category: "http-client", Confidence: 84, RevenueRate: 0.75},
	{Pattern: "okhttp", Company: "", Category: "http-client", Confidence: 82, RevenueRate: 0.75},
	{Pattern: "httpx", Company: "", Category: "http-client", Confidence: 82, RevenueRate: 0.75},
	{Pattern: "java/", Company: "", Category: "http-client", Confidence: 80, RevenueRate: 0.75},
}

// DefaultSignatures returns a copy of the built-in signature table.
func DefaultSignatures() []models.BotSignature {
	out := make([]models.BotSignature, len(defaultSignatures))
	copy(out, defaultSignatures)
	return out
}

// SignatureMatcher performs ordered, case-insensitive substring matching
// of user agents against a signature table. The table is fixed at
// construction; swapping in updated signatures means building a new
// matcher.
type SignatureMatcher struct {
	sigs    []models.BotSignature
	lowered []string
}

// NewSignatureMatcher builds a matcher over sigs, preserving order.
// Passing nil uses the built-in table.
func NewSignatureMatcher(sigs []models.BotSignature) *SignatureMatcher {
	if sigs == nil {
		sigs = DefaultSignatures()
	}
	lowered := make([]string, len(sigs))
	for i, s := range sigs {
		lowered[i] = strings.ToLower(s.Pattern)
	}
	return &SignatureMatcher{sigs: sigs, lowered: lowered}
}

// Match returns the first signature whose pattern appears in userAgent,
// or nil when nothing matches. An empty user agent never matches.
func (m *SignatureMatcher) Match(userAgent string) *models.DetectionResult {
	if userAgent == "" {
		return nil
	}
	ua := strings.ToLower(userAgent)
	for i, pattern := range m.lowered {
		if strings.Contains(ua, pattern) {
			sig := m.sigs[i]
			return &models.DetectionResult{
				Method:      models.MethodSignature,
				BotType:     sig.Category,
				Company:     sig.Company,
				Confidence:  models.Clamp(sig.Confidence),
				RevenueRate: sig.RevenueRate,
			}
		}
	}
	return nil
}

// Len reports the number of signatures the matcher holds.
func (m *SignatureMatcher) Len() int { return len(m.sigs) }
