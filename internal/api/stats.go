package api

import (
	"net/http"

	"github.com/crawlmeter/crawlmeter/internal/ratelimit"
)

// StatsHandler returns per-key rate limiting counters along with the
// size of the active signature table.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var limiterStats map[string]ratelimit.Stats
	if s.Limiter != nil {
		limiterStats = s.Limiter.GetStats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signatures": s.Engine.SignatureCount(),
		"rate_limit": limiterStats,
	})
	s.Metrics.IncrementRequests("stats", r.Method, "200")
}
