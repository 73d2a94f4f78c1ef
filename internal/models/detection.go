package models

// Detection methods, one per pipeline stage. The value is what ends up
// in verdicts, metrics labels and the analytics sink.
const (
	MethodSignature  = "signature"
	MethodPattern    = "pattern"
	MethodIPRange    = "ip_range"
	MethodBehavioral = "behavioral"
	MethodHeaders    = "headers"
	MethodEntropy    = "entropy"
)

// DetectionResult is a single stage's positive finding. Stages that do
// not fire return nil instead of a zero-value result.
type DetectionResult struct {
	Method     string `json:"method"`
	BotType    string `json:"bot_type"`
	Company    string `json:"company,omitempty"`
	Confidence int    `json:"confidence"`
	// RevenueRate overrides the tier base rate when set (signature
	// matches carry a curated per-bot rate).
	RevenueRate float64 `json:"revenue_rate,omitempty"`
}

// Clamp bounds a confidence score to the valid [0,100] range.
func Clamp(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
