package api

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/avct/uasurfer"
	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/analytics"
	"github.com/crawlmeter/crawlmeter/internal/config"
	"github.com/crawlmeter/crawlmeter/internal/db"
	"github.com/crawlmeter/crawlmeter/internal/detect"
	"github.com/crawlmeter/crawlmeter/internal/geoip"
	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/observability"
	"github.com/crawlmeter/crawlmeter/internal/ratelimit"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Engine    *detect.Engine
	Limiter   *ratelimit.Limiter
	Analytics analytics.Service
	GeoIP     *geoip.GeoIP
	PG        *db.Postgres
	Metrics   observability.MetricsRegistry
	Config    config.Config

	reloadMu sync.Mutex
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, engine *detect.Engine, limiter *ratelimit.Limiter, analyticsSvc analytics.Service, geo *geoip.GeoIP, pg *db.Postgres, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:    logger,
		Engine:    engine,
		Limiter:   limiter,
		Analytics: analyticsSvc,
		GeoIP:     geo,
		PG:        pg,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// enrich fills in attribution fields the pipeline itself does not
// compute: country from GeoIP and device type from the parsed agent.
func (s *Server) enrich(v *models.Verdict, rc models.RequestContext) {
	if s.GeoIP != nil && rc.ClientIP != "" {
		if ip := net.ParseIP(rc.ClientIP); ip != nil {
			v.Country = s.GeoIP.Country(ip)
		}
	}
	if rc.UserAgent != "" {
		switch uasurfer.Parse(rc.UserAgent).DeviceType {
		case uasurfer.DeviceComputer:
			v.DeviceType = "desktop"
		case uasurfer.DevicePhone:
			v.DeviceType = "mobile"
		case uasurfer.DeviceTablet:
			v.DeviceType = "tablet"
		default:
			v.DeviceType = "other"
		}
	}
}

// record writes the verdict to the analytics sink. Non-bot verdicts are
// sampled to keep row volume proportional to interesting traffic.
func (s *Server) record(v models.Verdict, rc models.RequestContext) {
	if s.Analytics == nil {
		return
	}
	if !v.IsBot && !observability.ShouldSample(s.Config.AnalyticsSampleRate) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Analytics.RecordDetection(ctx, v, rc); err != nil && err != analytics.ErrUnavailable {
		s.Logger.Warn("record detection", zap.String("request_id", v.RequestID), zap.Error(err))
	}
}
