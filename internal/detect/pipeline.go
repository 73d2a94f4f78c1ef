package detect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/observability"
	"github.com/crawlmeter/crawlmeter/internal/policy"
	"github.com/crawlmeter/crawlmeter/internal/ratelimit"
	"github.com/crawlmeter/crawlmeter/internal/revenue"
)

// MethodRateLimit labels verdicts produced by the front gate rather
// than a detection stage.
const MethodRateLimit = "rate_limit"

const rateLimitConfidence = 70

// Config tunes the pipeline.
type Config struct {
	// MinConfidence is the aggregate score at or above which a request
	// is called a bot.
	MinConfidence int
	// Timeout bounds one full evaluation; on expiry the safe allow
	// verdict is returned. The pipeline sits on the hot request path,
	// so this should stay well under typical page budgets.
	Timeout         time.Duration
	HeaderThreshold int
	Behavioral      BehavioralConfig
}

// DefaultConfig returns the middle-of-the-road preset.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   50,
		Timeout:         75 * time.Millisecond,
		HeaderThreshold: DefaultHeaderThreshold,
		Behavioral:      DefaultBehavioralConfig(),
	}
}

// Engine runs the full classification pipeline: a rate limit gate, six
// concurrent analyzers, then aggregation into a priced verdict.
//
// The signature and IP range tables can be swapped at runtime (reload
// from the override store); everything else is fixed at construction.
type Engine struct {
	mu         sync.RWMutex
	signatures *SignatureMatcher
	ipRanges   *IPRangeClassifier

	patterns   *PatternAnalyzer
	behavioral *BehavioralAnalyzer
	headers    *HeaderAnalyzer
	entropy    *EntropyScorer

	limiter    *ratelimit.Limiter
	calculator *revenue.Calculator
	policy     policy.ActionPolicy

	cfg     Config
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewEngine wires the pipeline. historyStore and limiter may be nil,
// which disables the behavioral stage and the front gate respectively.
func NewEngine(
	cfg Config,
	historyStore HistoryStore,
	limiter *ratelimit.Limiter,
	calculator *revenue.Calculator,
	actionPolicy policy.ActionPolicy,
	logger *zap.Logger,
	metrics observability.MetricsRegistry,
) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 75 * time.Millisecond
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if calculator == nil {
		calculator = revenue.NewCalculator(revenue.DefaultConfig())
	}
	return &Engine{
		signatures: NewSignatureMatcher(nil),
		ipRanges:   NewIPRangeClassifier(nil),
		patterns:   NewPatternAnalyzer(),
		behavioral: NewBehavioralAnalyzer(historyStore, cfg.Behavioral, logger),
		headers:    NewHeaderAnalyzer(cfg.HeaderThreshold),
		entropy:    NewEntropyScorer(),
		limiter:    limiter,
		calculator: calculator,
		policy:     actionPolicy,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// SetSignatures swaps in a new signature table (override reload).
func (e *Engine) SetSignatures(sigs []models.BotSignature) {
	m := NewSignatureMatcher(sigs)
	e.mu.Lock()
	e.signatures = m
	e.mu.Unlock()
}

// SetIPRanges swaps in a new IP range table.
func (e *Engine) SetIPRanges(ranges []models.IPRange) {
	c := NewIPRangeClassifier(ranges)
	e.mu.Lock()
	e.ipRanges = c
	e.mu.Unlock()
}

// SignatureCount reports the size of the active signature table.
func (e *Engine) SignatureCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.signatures.Len()
}

// Evaluate runs one request through the pipeline and returns the
// verdict. It never returns an error: every failure mode degrades to
// the allow verdict so detection trouble cannot block content delivery.
func (e *Engine) Evaluate(ctx context.Context, rc models.RequestContext) models.Verdict {
	start := time.Now()
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}
	if rc.Timestamp.IsZero() {
		rc.Timestamp = start
	}

	// Front gate. A rate-limited client is classified without running
	// the analyzers; sustained over-limit traffic is its own signal.
	if e.limiter != nil {
		keyClass := "ip"
		if rc.LicenseKey != "" {
			keyClass = "license"
		}
		if !e.limiter.Allow(ctx, rc.RateLimitKey(), keyClass) {
			v := e.aggregate(rc, []*models.DetectionResult{{
				Method:     MethodRateLimit,
				BotType:    "rate-limited",
				Confidence: rateLimitConfidence,
			}})
			v.RateLimited = true
			e.finish(v, start)
			return v
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	e.mu.RLock()
	signatures := e.signatures
	ipRanges := e.ipRanges
	e.mu.RUnlock()

	// Fan out. Results land in fixed slots so aggregation order (and
	// therefore tie-breaking) never depends on goroutine scheduling.
	results := make([]*models.DetectionResult, 6)
	stages := []func(){
		func() { results[0] = signatures.Match(rc.UserAgent) },
		func() { results[1] = e.patterns.Analyze(rc.UserAgent) },
		func() { results[2] = ipRanges.Classify(rc.ClientIP) },
		func() { results[3] = e.behavioral.Analyze(ctx, rc.ClientIP, rc.UserAgent) },
		func() { results[4] = e.headers.Analyze(rc.Headers) },
		func() { results[5] = e.entropy.Score(rc.UserAgent) },
	}

	var wg sync.WaitGroup
	wg.Add(len(stages))
	for _, stage := range stages {
		go func(run func()) {
			defer wg.Done()
			run()
		}(stage)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.metrics.IncrementPipelineTimeouts()
		e.logger.Warn("pipeline deadline exceeded",
			zap.String("request_id", rc.RequestID),
			zap.Duration("timeout", e.cfg.Timeout))
		v := models.AllowVerdict(rc.RequestID, rc.Timestamp)
		e.finish(v, start)
		return v
	}

	e.behavioral.Observe(context.WithoutCancel(ctx), rc)

	fired := make([]*models.DetectionResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			fired = append(fired, r)
		}
	}

	v := e.aggregate(rc, fired)
	e.finish(v, start)
	return v
}

// aggregate combines per-stage results into the final verdict:
// confidence is the max of firing stages (never a sum), the primary
// type is decided by plurality with ties broken by stage order, and
// revenue only accrues to bot verdicts.
func (e *Engine) aggregate(rc models.RequestContext, fired []*models.DetectionResult) models.Verdict {
	v := models.AllowVerdict(rc.RequestID, rc.Timestamp)
	if len(fired) == 0 {
		return v
	}

	confidence := 0
	var top *models.DetectionResult
	for _, r := range fired {
		e.metrics.IncrementDetections(r.Method)
		if r.Confidence > confidence {
			confidence = r.Confidence
			top = r
		}
	}
	confidence = models.Clamp(confidence)

	typeCounts := make(map[string]int, len(fired))
	primaryType := fired[0].BotType
	bestCount := 0
	for _, r := range fired {
		typeCounts[r.BotType]++
		if typeCounts[r.BotType] > bestCount {
			bestCount = typeCounts[r.BotType]
			primaryType = r.BotType
		}
	}

	company := ""
	for _, r := range fired {
		if r.Company != "" {
			company = r.Company
			break
		}
	}

	methods := make([]string, 0, len(fired))
	for _, r := range fired {
		methods = append(methods, r.Method)
	}

	v.Confidence = confidence
	v.IsBot = confidence >= e.cfg.MinConfidence
	v.PrimaryType = primaryType
	v.Company = company
	v.Methods = methods
	v.Action = e.policy.ActionFor(v.IsBot, confidence)

	baseRate := 0.0
	if top != nil {
		baseRate = top.RevenueRate
	}
	v.Revenue = e.calculator.Calculate(v.IsBot, confidence, primaryType, baseRate, rc)
	return v
}

func (e *Engine) finish(v models.Verdict, start time.Time) {
	e.metrics.IncrementVerdicts(string(v.Action))
	e.metrics.ObserveConfidence(v.Confidence)
	e.metrics.RecordPipelineLatency(time.Since(start))
	if v.Revenue > 0 {
		e.metrics.AddRevenue(v.PrimaryType, v.Revenue)
	}
}

// Classify runs only the stateless user-agent stages (signatures, then
// patterns) for callers that have no request context, like the CLI
// tools and the MCP server.
func (e *Engine) Classify(userAgent string) *models.DetectionResult {
	e.mu.RLock()
	signatures := e.signatures
	e.mu.RUnlock()

	if r := signatures.Match(userAgent); r != nil {
		return r
	}
	if r := e.patterns.Analyze(userAgent); r != nil {
		return r
	}
	return e.entropy.Score(userAgent)
}
