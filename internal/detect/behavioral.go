package detect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// HistoryStore provides the recent-request history the behavioral
// analyzer reads. Implementations live in internal/history; the
// interface exists here so tests can inject synthetic traffic.
type HistoryStore interface {
	// Recent returns entries for ip not older than window, newest last.
	Recent(ctx context.Context, ip string, window time.Duration) ([]models.HistoryEntry, error)
	// Record appends one observed request.
	Record(ctx context.Context, entry models.HistoryEntry) error
}

// BehavioralConfig tunes the two behavioral heuristics.
type BehavioralConfig struct {
	Window time.Duration // analysis window, default 60s
	// FrequencyThreshold is the request count above which (strictly)
	// the high-frequency heuristic fires.
	FrequencyThreshold int
	// RotationThreshold is the distinct-UA count above which (strictly)
	// the rotation heuristic fires.
	RotationThreshold int
}

// DefaultBehavioralConfig mirrors the thresholds the heuristics were
// tuned with: 10 requests and 3 user agents per minute.
func DefaultBehavioralConfig() BehavioralConfig {
	return BehavioralConfig{
		Window:             time.Minute,
		FrequencyThreshold: 10,
		RotationThreshold:  3,
	}
}

const (
	highFrequencyConfidence = 70
	uaRotationConfidence    = 65
)

// BehavioralAnalyzer is the one stateful stage: it inspects the shared
// request history for the client IP. A missing or failing store makes
// the analyzer permissive rather than failing the pipeline.
type BehavioralAnalyzer struct {
	store  HistoryStore
	cfg    BehavioralConfig
	logger *zap.Logger
}

// NewBehavioralAnalyzer builds an analyzer over store. A nil store
// disables the stage.
func NewBehavioralAnalyzer(store HistoryStore, cfg BehavioralConfig, logger *zap.Logger) *BehavioralAnalyzer {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.FrequencyThreshold <= 0 {
		cfg.FrequencyThreshold = 10
	}
	if cfg.RotationThreshold <= 0 {
		cfg.RotationThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BehavioralAnalyzer{store: store, cfg: cfg, logger: logger}
}

// Analyze checks the trailing window for the IP. Two heuristics can
// fire; the higher-confidence one is returned, consistent with the
// aggregator's max rule.
func (a *BehavioralAnalyzer) Analyze(ctx context.Context, ip, userAgent string) *models.DetectionResult {
	if a.store == nil || ip == "" {
		return nil
	}
	entries, err := a.store.Recent(ctx, ip, a.cfg.Window)
	if err != nil {
		// Fail open: a degraded history store must not block traffic.
		a.logger.Debug("history store unavailable", zap.String("ip", ip), zap.Error(err))
		return nil
	}

	var best *models.DetectionResult
	if len(entries) > a.cfg.FrequencyThreshold {
		best = &models.DetectionResult{
			Method:     models.MethodBehavioral,
			BotType:    "high-frequency",
			Confidence: highFrequencyConfidence,
		}
	}

	distinct := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		distinct[e.UserAgent] = struct{}{}
	}
	if userAgent != "" {
		distinct[userAgent] = struct{}{}
	}
	if len(distinct) > a.cfg.RotationThreshold {
		if best == nil || uaRotationConfidence > best.Confidence {
			best = &models.DetectionResult{
				Method:     models.MethodBehavioral,
				BotType:    "ua-rotation",
				Confidence: uaRotationConfidence,
			}
		}
	}
	return best
}

// Observe records the current request into the history store so later
// requests from the same IP see it. Errors are logged and swallowed.
func (a *BehavioralAnalyzer) Observe(ctx context.Context, rc models.RequestContext) {
	if a.store == nil || rc.ClientIP == "" {
		return
	}
	ts := rc.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := models.HistoryEntry{IP: rc.ClientIP, UserAgent: rc.UserAgent, Timestamp: ts}
	if err := a.store.Record(ctx, entry); err != nil {
		a.logger.Debug("history record failed", zap.String("ip", rc.ClientIP), zap.Error(err))
	}
}
