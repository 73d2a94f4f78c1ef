package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crawlmeter/crawlmeter/internal/analytics"
	"github.com/crawlmeter/crawlmeter/internal/config"
	"github.com/crawlmeter/crawlmeter/internal/detect"
	"github.com/crawlmeter/crawlmeter/internal/history"
	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/observability"
	"github.com/crawlmeter/crawlmeter/internal/policy"
	"github.com/crawlmeter/crawlmeter/internal/revenue"
)

const gptBotUA = "Mozilla/5.0; compatible; GPTBot/1.0; +https://openai.com/gptbot"
const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newTestServer(t *testing.T) (*Server, *analytics.MockAnalytics) {
	t.Helper()
	cfg := config.Load()
	engine := detect.NewEngine(
		detect.DefaultConfig(),
		history.NewMemoryStore(time.Minute),
		nil,
		revenue.NewCalculator(revenue.DefaultConfig()),
		policy.Default(cfg.MinConfidence),
		zaptest.NewLogger(t),
		observability.NewMockMetricsRegistry(),
	)
	mock := &analytics.MockAnalytics{}
	srv := NewServer(zaptest.NewLogger(t), engine, nil, mock, nil, nil,
		observability.NewNoOpRegistry(), cfg)
	return srv, mock
}

func postDetect(t *testing.T, srv *Server, body any) models.Verdict {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.DetectHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var v models.Verdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestDetectHandler_BotRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	v := postDetect(t, srv, detectRequest{
		RequestID: "req-1",
		UserAgent: gptBotUA,
		ClientIP:  "20.15.240.10",
		URL:       "/blog/post",
		Headers: map[string]string{
			"Accept":          "text/html",
			"Accept-Language": "en-US",
			"Accept-Encoding": "gzip",
		},
	})

	assert.Equal(t, "req-1", v.RequestID)
	assert.True(t, v.IsBot)
	assert.Equal(t, 98, v.Confidence)
	assert.Equal(t, "openai", v.PrimaryType)
	assert.Equal(t, models.ActionPaywall, v.Action)
	assert.Greater(t, v.Revenue, 0.0)
}

func TestDetectHandler_HumanRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	v := postDetect(t, srv, detectRequest{
		UserAgent: chromeUA,
		ClientIP:  "93.184.216.34",
		Headers: map[string]string{
			"Accept":          "text/html",
			"Accept-Language": "en-US",
			"Accept-Encoding": "gzip",
		},
	})

	assert.False(t, v.IsBot)
	assert.Equal(t, models.ActionAllow, v.Action)
	assert.Zero(t, v.Revenue)
	assert.NotEmpty(t, v.RequestID, "missing request id is generated")
}

func TestDetectHandler_MalformedBodyFailsOpen(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.DetectHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "detection trouble must never block a page")
	var v models.Verdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.NotEmpty(t, v.RequestID)
}

func TestDetectHandler_ResolvesClientIPFromHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	v := postDetect(t, srv, detectRequest{
		UserAgent:  chromeUA,
		RemoteAddr: "10.0.0.1:443",
		Headers: map[string]string{
			"Accept":          "text/html",
			"Accept-Language": "en-US",
			"Accept-Encoding": "gzip",
			"X-Forwarded-For": "20.15.240.10",
		},
	})

	// The forwarded address lands in an OpenAI block, so the range
	// stage fires even though the caller never resolved the IP.
	assert.Contains(t, v.Methods, models.MethodIPRange)
}

func TestCheckHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/check?url=/research/paper", nil)
	req.Header.Set("User-Agent", gptBotUA)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Accept-Encoding", "gzip")
	req.RemoteAddr = "20.15.240.10:55001"
	rec := httptest.NewRecorder()
	srv.CheckHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var v models.Verdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.True(t, v.IsBot)
	assert.Equal(t, "openai", v.PrimaryType)
}

func TestClassifyHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify?ua=GPTBot/1.0", nil)
	rec := httptest.NewRecorder()
	srv.ClassifyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp classifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.IsBot)
	assert.Equal(t, models.MethodSignature, resp.Method)
	assert.Equal(t, "openai", resp.BotType)
	assert.Equal(t, "OpenAI", resp.Company)
	assert.Equal(t, 98, resp.Confidence)
	assert.Equal(t, 5.00, resp.BaseRate)
}

func TestClassifyHandler_CleanAgent(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify?ua="+url.QueryEscape(chromeUA), nil)
	rec := httptest.NewRecorder()
	srv.ClassifyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp classifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.IsBot)
	assert.Equal(t, 0, resp.Confidence)
}

func TestClassifyHandler_MissingParam(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify", nil)
	rec := httptest.NewRecorder()
	srv.ClassifyHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HealthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatsHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.StatsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Signatures int `json:"signatures"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Greater(t, resp.Signatures, 0)
}

func TestReloadHandler_NoOverrideStore(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	rec := httptest.NewRecorder()
	srv.ReloadHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "reload without postgres is a no-op, not an error")
}

func TestServer_RecordSendsBotVerdicts(t *testing.T) {
	srv, mock := newTestServer(t)

	v := models.Verdict{RequestID: "req-1", IsBot: true, Confidence: 98, PrimaryType: "openai"}
	srv.record(v, models.RequestContext{UserAgent: gptBotUA})

	recorded := mock.Recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, "req-1", recorded[0].RequestID)
}

func TestServer_RecordSamplesHumanVerdicts(t *testing.T) {
	srv, mock := newTestServer(t)
	srv.Config.AnalyticsSampleRate = 0

	srv.record(models.Verdict{RequestID: "req-2", IsBot: false}, models.RequestContext{})
	assert.Empty(t, mock.Recorded(), "human traffic at sample rate zero is dropped")

	srv.Config.AnalyticsSampleRate = 1
	srv.record(models.Verdict{RequestID: "req-3", IsBot: false}, models.RequestContext{})
	assert.Len(t, mock.Recorded(), 1)
}

func TestServer_EnrichDeviceType(t *testing.T) {
	srv, _ := newTestServer(t)

	v := models.Verdict{}
	srv.enrich(&v, models.RequestContext{UserAgent: chromeUA})
	assert.Equal(t, "desktop", v.DeviceType)

	mobile := models.Verdict{}
	srv.enrich(&mobile, models.RequestContext{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	})
	assert.Equal(t, "mobile", mobile.DeviceType)
}
