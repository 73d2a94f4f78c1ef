package detect

import (
	"net"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// ipRangeConfidence is fixed for all range hits: the block attribution
// is strong evidence of origin but says nothing about intent.
const ipRangeConfidence = 80

// defaultIPRanges are published crawler egress blocks. IPv4 only; the
// classifier skips anything else.
var defaultIPRanges = []models.IPRange{
	{Company: "OpenAI", Category: "openai", CIDR: "20.15.240.0/20"},
	{Company: "OpenAI", Category: "openai", CIDR: "20.171.206.0/23"},
	{Company: "OpenAI", Category: "openai", CIDR: "40.83.2.0/23"},
	{Company: "OpenAI", Category: "openai", CIDR: "52.230.152.0/21"},
	{Company: "OpenAI", Category: "openai", CIDR: "172.182.192.0/22"},
	{Company: "Anthropic", Category: "anthropic", CIDR: "160.79.104.0/23"},
	{Company: "Common Crawl", Category: "data-collector", CIDR: "18.97.0.0/16"},
	{Company: "Perplexity", Category: "search-ai", CIDR: "107.21.236.0/24"},
	{Company: "ByteDance", Category: "ai-crawler", CIDR: "110.249.201.0/24"},
	{Company: "ByteDance", Category: "ai-crawler", CIDR: "111.225.148.0/24"},
	{Company: "Meta", Category: "social", CIDR: "69.171.224.0/19"},
	{Company: "Meta", Category: "social", CIDR: "157.240.0.0/16"},
	{Company: "Amazon", Category: "ai-crawler", CIDR: "12.35.32.0/22"},
}

// DefaultIPRanges returns a copy of the built-in range table.
func DefaultIPRanges() []models.IPRange {
	out := make([]models.IPRange, len(defaultIPRanges))
	copy(out, defaultIPRanges)
	return out
}

type parsedRange struct {
	net      *net.IPNet
	company  string
	category string
}

// IPRangeClassifier attributes client addresses to crawler operators by
// CIDR membership.
type IPRangeClassifier struct {
	ranges []parsedRange
}

// NewIPRangeClassifier parses the given ranges, silently dropping
// malformed or non-IPv4 entries. Passing nil uses the built-in table.
func NewIPRangeClassifier(ranges []models.IPRange) *IPRangeClassifier {
	if ranges == nil {
		ranges = DefaultIPRanges()
	}
	c := &IPRangeClassifier{}
	for _, r := range ranges {
		_, n, err := net.ParseCIDR(r.CIDR)
		if err != nil || n.IP.To4() == nil {
			continue
		}
		c.ranges = append(c.ranges, parsedRange{net: n, company: r.Company, category: r.Category})
	}
	return c
}

// Classify returns a detection for the first range containing ip.
// Malformed addresses and IPv6 return nil, never an error.
func (c *IPRangeClassifier) Classify(ip string) *models.DetectionResult {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return nil
	}
	for _, r := range c.ranges {
		if r.net.Contains(parsed) {
			return &models.DetectionResult{
				Method:     models.MethodIPRange,
				BotType:    r.category,
				Company:    r.company,
				Confidence: ipRangeConfidence,
			}
		}
	}
	return nil
}
