package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/clientip"
	"github.com/crawlmeter/crawlmeter/internal/middleware"
	"github.com/crawlmeter/crawlmeter/internal/models"
)

// detectRequest is the JSON body accepted by POST /v1/detect. Callers
// (origin plugins, edge workers) forward the visitor request's fields.
type detectRequest struct {
	RequestID  string            `json:"request_id,omitempty"`
	UserAgent  string            `json:"user_agent"`
	ClientIP   string            `json:"client_ip,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	LicenseKey string            `json:"license_key,omitempty"`
	Priority   int               `json:"priority,omitempty"`
}

// DetectHandler evaluates a forwarded request description and returns
// the verdict. Malformed input degrades to an allow verdict rather than
// a client error: detection trouble must never block a page.
func (s *Server) DetectHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "detect"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("detect body decode", zap.Error(err))
	}

	rc := s.buildContext(req)
	verdict := s.Engine.Evaluate(r.Context(), rc)
	s.enrich(&verdict, rc)
	go s.record(verdict, rc)

	writeJSON(w, http.StatusOK, verdict)
	s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(http.StatusOK))
	s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
}

// CheckHandler evaluates the calling request itself: user agent, headers
// and resolved client address come straight off the wire. Useful for
// edge deployments that proxy traffic through the service.
func (s *Server) CheckHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "check"

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	rc := models.RequestContext{
		RequestID: uuid.NewString(),
		UserAgent: r.UserAgent(),
		ClientIP:  clientip.Resolve(headers, r.RemoteAddr),
		URL:       r.URL.Query().Get("url"),
		Headers:   headers,
		Timestamp: time.Now(),
	}
	if rc.URL == "" {
		rc.URL = r.Referer()
	}

	verdict := s.Engine.Evaluate(r.Context(), rc)
	s.enrich(&verdict, rc)
	go s.record(verdict, rc)

	writeJSON(w, http.StatusOK, verdict)
	s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(http.StatusOK))
	s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
}

// buildContext normalizes a detectRequest into the engine's input,
// resolving the client address from forwarded headers when the caller
// did not resolve it already.
func (s *Server) buildContext(req detectRequest) models.RequestContext {
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	ip := req.ClientIP
	if ip == "" {
		ip = clientip.Resolve(req.Headers, req.RemoteAddr)
	}
	return models.RequestContext{
		RequestID:  id,
		UserAgent:  req.UserAgent,
		ClientIP:   ip,
		URL:        req.URL,
		Headers:    req.Headers,
		Timestamp:  time.Now(),
		LicenseKey: req.LicenseKey,
		Priority:   req.Priority,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
