package models

import (
	"strings"
	"time"
)

// RequestContext is the engine's view of one incoming HTTP request.
// It is constructed once by the caller and treated as read-only by
// every pipeline stage.
type RequestContext struct {
	RequestID  string            `json:"request_id"`
	UserAgent  string            `json:"user_agent"`
	ClientIP   string            `json:"client_ip"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	LicenseKey string            `json:"license_key,omitempty"`
	// Priority is the publisher's tier (0-5) and only influences the
	// revenue multiplier, never the detection outcome.
	Priority int `json:"priority,omitempty"`
}

// Header returns the value for name, matching case-insensitively.
// A missing header returns the empty string.
func (rc RequestContext) Header(name string) string {
	if v, ok := rc.Headers[name]; ok {
		return v
	}
	name = strings.ToLower(name)
	for k, v := range rc.Headers {
		if strings.ToLower(k) == name {
			return v
		}
	}
	return ""
}

// RateLimitKey returns the key the limiter buckets this request under.
// Multi-tenant installs limit per license key; everyone else per IP.
func (rc RequestContext) RateLimitKey() string {
	if rc.LicenseKey != "" {
		return rc.LicenseKey
	}
	return rc.ClientIP
}

// HistoryEntry is one prior request observed for an IP. Stores only
// retain entries inside the behavioral analysis window.
type HistoryEntry struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}
