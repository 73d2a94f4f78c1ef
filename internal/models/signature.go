package models

// BotSignature is one entry in the curated table of known crawler
// identities. The table is ordered: more specific, higher-value
// signatures come before generic ones, and the first substring match
// wins.
type BotSignature struct {
	// Pattern is matched case-insensitively as a substring of the
	// request's User-Agent.
	Pattern string `json:"pattern"`
	Company string `json:"company"`
	// Category groups signatures into bot families ("openai",
	// "search-ai", "data-collector", ...) used for revenue multipliers.
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	// RevenueRate is the curated per-detection base rate in USD.
	RevenueRate float64 `json:"revenue_rate"`
}

// IPRange attributes a CIDR block to a crawler operator. IPv4 only;
// IPv6 blocks are ignored by the classifier.
type IPRange struct {
	Company  string `json:"company"`
	Category string `json:"category"`
	CIDR     string `json:"cidr"`
}
