package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crawlmeter/crawlmeter/internal/history"
	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/observability"
	"github.com/crawlmeter/crawlmeter/internal/policy"
	"github.com/crawlmeter/crawlmeter/internal/ratelimit"
	"github.com/crawlmeter/crawlmeter/internal/revenue"
)

// offPeak keeps revenue assertions independent of the wall clock.
var offPeak = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, limiter *ratelimit.Limiter) *Engine {
	t.Helper()
	return NewEngine(
		DefaultConfig(),
		history.NewMemoryStore(time.Minute),
		limiter,
		revenue.NewCalculator(revenue.DefaultConfig()),
		policy.Default(50),
		zaptest.NewLogger(t),
		observability.NewMockMetricsRegistry(),
	)
}

func TestEngine_Evaluate_KnownAICrawler(t *testing.T) {
	e := newTestEngine(t, nil)

	v := e.Evaluate(context.Background(), models.RequestContext{
		RequestID: "req-1",
		UserAgent: "Mozilla/5.0; compatible; GPTBot/1.0; +https://openai.com/gptbot",
		ClientIP:  "20.15.240.10",
		URL:       "/blog/post",
		Headers:   browserHeaders(),
		Timestamp: offPeak,
	})

	assert.True(t, v.IsBot)
	assert.Equal(t, 98, v.Confidence, "aggregation takes the max, never a sum")
	assert.Equal(t, "openai", v.PrimaryType)
	assert.Equal(t, "OpenAI", v.Company)
	assert.Contains(t, v.Methods, models.MethodSignature)
	assert.Contains(t, v.Methods, models.MethodIPRange)
	assert.Equal(t, models.ActionPaywall, v.Action)
	// Curated base rate 5.00 times the openai multiplier, off peak.
	assert.InDelta(t, 7.50, v.Revenue, 1e-9)
	assert.False(t, v.RateLimited)
}

func TestEngine_Evaluate_CleanBrowser(t *testing.T) {
	e := newTestEngine(t, nil)

	v := e.Evaluate(context.Background(), models.RequestContext{
		RequestID: "req-2",
		UserAgent: chromeUA,
		ClientIP:  "93.184.216.34",
		URL:       "/",
		Headers:   browserHeaders(),
		Timestamp: offPeak,
	})

	assert.False(t, v.IsBot)
	assert.Equal(t, 0, v.Confidence)
	assert.Empty(t, v.Methods)
	assert.Equal(t, models.ActionAllow, v.Action)
	assert.Zero(t, v.Revenue)
}

func TestEngine_Evaluate_UnlistedClient(t *testing.T) {
	e := newTestEngine(t, nil)

	// Not in any table, but sends no browser headers.
	v := e.Evaluate(context.Background(), models.RequestContext{
		RequestID: "req-3",
		UserAgent: "curl/7.68.0",
		ClientIP:  "8.8.8.8",
		URL:       "/",
		Timestamp: offPeak,
	})

	assert.True(t, v.IsBot)
	assert.Equal(t, 55, v.Confidence)
	assert.Contains(t, v.Methods, models.MethodHeaders)
	assert.NotContains(t, v.Methods, models.MethodSignature)
	assert.NotContains(t, v.Methods, models.MethodEntropy)
	assert.Equal(t, models.ActionLog, v.Action)
	assert.Greater(t, v.Revenue, 0.0)
}

func TestEngine_Evaluate_BehavioralAcrossRequests(t *testing.T) {
	e := newTestEngine(t, nil)

	// Timestamps default to now so the entries stay inside the history
	// window.
	rc := models.RequestContext{
		UserAgent: chromeUA,
		ClientIP:  "93.184.216.34",
		Headers:   browserHeaders(),
	}

	// Each evaluation records history; the twelfth sees eleven prior
	// requests and trips the frequency heuristic.
	for i := 0; i < 11; i++ {
		e.Evaluate(context.Background(), rc)
	}
	v := e.Evaluate(context.Background(), rc)

	assert.True(t, v.IsBot)
	assert.Equal(t, 70, v.Confidence)
	assert.Equal(t, "high-frequency", v.PrimaryType)
	assert.Contains(t, v.Methods, models.MethodBehavioral)
}

func TestEngine_Evaluate_TimeoutFailsOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	metrics := observability.NewMockMetricsRegistry()
	e := NewEngine(cfg, blockingHistoryStore{}, nil,
		revenue.NewCalculator(revenue.DefaultConfig()), policy.Default(50),
		zaptest.NewLogger(t), metrics)

	v := e.Evaluate(context.Background(), models.RequestContext{
		RequestID: "req-4",
		UserAgent: "Mozilla/5.0; compatible; GPTBot/1.0",
		ClientIP:  "20.15.240.10",
		Timestamp: offPeak,
	})

	assert.False(t, v.IsBot, "deadline overrun must degrade to allow")
	assert.Equal(t, 0, v.Confidence)
	assert.Equal(t, models.ActionAllow, v.Action)
	assert.Zero(t, v.Revenue)
	assert.Equal(t, "req-4", v.RequestID)
	assert.Equal(t, 1, metrics.Timeouts)
}

// blockingHistoryStore stalls until the pipeline deadline expires.
type blockingHistoryStore struct{}

func (blockingHistoryStore) Recent(ctx context.Context, _ string, _ time.Duration) ([]models.HistoryEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingHistoryStore) Record(_ context.Context, _ models.HistoryEntry) error { return nil }

func TestEngine_Evaluate_RateLimited(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Limit:   2,
		Window:  time.Minute,
		Enabled: true,
	}, metrics, zaptest.NewLogger(t))
	e := newTestEngine(t, limiter)

	rc := models.RequestContext{
		UserAgent: chromeUA,
		ClientIP:  "93.184.216.34",
		Headers:   browserHeaders(),
		Timestamp: offPeak,
	}

	first := e.Evaluate(context.Background(), rc)
	assert.False(t, first.RateLimited)
	e.Evaluate(context.Background(), rc)

	third := e.Evaluate(context.Background(), rc)
	assert.True(t, third.RateLimited)
	assert.True(t, third.IsBot)
	assert.Equal(t, 70, third.Confidence)
	assert.Equal(t, "rate-limited", third.PrimaryType)
	assert.Equal(t, []string{MethodRateLimit}, third.Methods)
	assert.Equal(t, models.ActionBlock, third.Action)
	assert.Greater(t, third.Revenue, 0.0)
}

func TestEngine_Evaluate_GeneratesRequestID(t *testing.T) {
	e := newTestEngine(t, nil)

	v := e.Evaluate(context.Background(), models.RequestContext{UserAgent: chromeUA, Timestamp: offPeak})
	assert.NotEmpty(t, v.RequestID)
}

func TestEngine_Evaluate_ConfidenceClamped(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SetSignatures([]models.BotSignature{
		{Pattern: "overbot", Category: "scraper", Confidence: 150, RevenueRate: 1.00},
	})

	v := e.Evaluate(context.Background(), models.RequestContext{
		UserAgent: "overbot/1.0",
		ClientIP:  "8.8.8.8",
		Headers:   browserHeaders(),
		Timestamp: offPeak,
	})

	assert.Equal(t, 100, v.Confidence)
	assert.True(t, v.IsBot)
}

func TestEngine_Evaluate_TieBreakByStageOrder(t *testing.T) {
	e := newTestEngine(t, nil)

	// Signature says openai, IP range says anthropic, one vote each.
	// The earlier stage wins the plurality tie, every time.
	e.SetSignatures([]models.BotSignature{
		{Pattern: "tiebot", Company: "OpenAI", Category: "openai", Confidence: 90},
	})
	e.SetIPRanges([]models.IPRange{
		{Company: "Anthropic", Category: "anthropic", CIDR: "160.79.104.0/23"},
	})

	for i := 0; i < 20; i++ {
		v := e.Evaluate(context.Background(), models.RequestContext{
			UserAgent: "tiebot",
			ClientIP:  "160.79.104.5",
			Headers:   browserHeaders(),
			Timestamp: offPeak,
		})
		require.Equal(t, "openai", v.PrimaryType)
		require.Equal(t, "OpenAI", v.Company)
	}
}

func TestEngine_SignatureSwap(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.Equal(t, len(defaultSignatures), e.SignatureCount())

	e.SetSignatures([]models.BotSignature{{Pattern: "custombot", Category: "scraper", Confidence: 90}})
	assert.Equal(t, 1, e.SignatureCount())

	v := e.Evaluate(context.Background(), models.RequestContext{
		UserAgent: "custombot/1.0",
		Headers:   browserHeaders(),
		Timestamp: offPeak,
	})
	assert.True(t, v.IsBot)
	assert.Equal(t, 90, v.Confidence)
}

func TestEngine_Classify(t *testing.T) {
	e := newTestEngine(t, nil)

	sig := e.Classify("GPTBot/1.0")
	require.NotNil(t, sig)
	assert.Equal(t, models.MethodSignature, sig.Method)
	assert.Equal(t, "openai", sig.BotType)

	pat := e.Classify("my-web-crawler/1.0")
	require.NotNil(t, pat)
	assert.Equal(t, models.MethodPattern, pat.Method)

	assert.Nil(t, e.Classify(chromeUA))
}
