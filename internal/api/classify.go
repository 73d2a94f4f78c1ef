package api

import (
	"net/http"
	"strconv"
	"time"
)

// classifyResponse is the stateless classification result for a bare
// user-agent string.
type classifyResponse struct {
	IsBot      bool    `json:"is_bot"`
	Method     string  `json:"method,omitempty"`
	BotType    string  `json:"bot_type,omitempty"`
	Company    string  `json:"company,omitempty"`
	Confidence int     `json:"confidence"`
	BaseRate   float64 `json:"base_rate,omitempty"`
}

// ClassifyHandler runs only the user-agent stages against ?ua=. It
// answers "what would this agent be billed as" without needing request
// context or history.
func (s *Server) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "classify"

	ua := r.URL.Query().Get("ua")
	if ua == "" {
		http.Error(w, "missing ua parameter", http.StatusBadRequest)
		s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(http.StatusBadRequest))
		return
	}

	resp := classifyResponse{}
	if result := s.Engine.Classify(ua); result != nil {
		resp = classifyResponse{
			IsBot:      result.Confidence >= s.Config.MinConfidence,
			Method:     result.Method,
			BotType:    result.BotType,
			Company:    result.Company,
			Confidence: result.Confidence,
			BaseRate:   result.RevenueRate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
	s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(http.StatusOK))
	s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
}
