package models

import "time"

// Action is the engine's recommendation to the caller. The engine never
// enforces it; serving the paywall or dropping the request is the
// caller's job.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionLog     Action = "log"
	ActionBlock   Action = "block"
	ActionPaywall Action = "paywall"
)

// Verdict is the pipeline's final output for one request. It is
// constructed once by the aggregator and immutable afterwards.
type Verdict struct {
	RequestID   string    `json:"request_id"`
	IsBot       bool      `json:"is_bot"`
	Confidence  int       `json:"confidence"`
	PrimaryType string    `json:"primary_type,omitempty"`
	Company     string    `json:"company,omitempty"`
	Methods     []string  `json:"methods,omitempty"`
	Revenue     float64   `json:"revenue"`
	Action      Action    `json:"action"`
	RateLimited bool      `json:"rate_limited,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Enrichment filled in outside the pipeline, for attribution only.
	Country    string `json:"country,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

// AllowVerdict is the conservative default returned on timeout or when
// no stage fires: not a bot, nothing owed, let the request through.
func AllowVerdict(requestID string, ts time.Time) Verdict {
	return Verdict{
		RequestID: requestID,
		Action:    ActionAllow,
		Timestamp: ts,
	}
}
