package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crawlmeter/crawlmeter/internal/analytics"
	"github.com/crawlmeter/crawlmeter/internal/api"
	"github.com/crawlmeter/crawlmeter/internal/config"
	"github.com/crawlmeter/crawlmeter/internal/db"
	"github.com/crawlmeter/crawlmeter/internal/detect"
	"github.com/crawlmeter/crawlmeter/internal/geoip"
	"github.com/crawlmeter/crawlmeter/internal/history"
	"github.com/crawlmeter/crawlmeter/internal/middleware"
	"github.com/crawlmeter/crawlmeter/internal/observability"
	"github.com/crawlmeter/crawlmeter/internal/policy"
	"github.com/crawlmeter/crawlmeter/internal/ratelimit"
	"github.com/crawlmeter/crawlmeter/internal/revenue"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsRegistry := observability.NewPrometheusRegistry()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			defer shutdownTracing()
		}
	}

	// Signature overrides live in Postgres. The service is fully
	// functional on the built-in tables, so a missing database only
	// warns.
	var pg *db.Postgres
	if cfg.PostgresDSN != "" {
		var err error
		pg, err = db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Warn("postgres unavailable, using built-in signature tables", zap.Error(err))
			pg = nil
		} else {
			defer pg.Close()
		}
	}

	// Redis backs the request history and the rate limit counters.
	// Without it both fall back to process-local memory, which is fine
	// for a single instance but loses cross-instance coordination.
	var historyStore detect.HistoryStore
	var windowStore ratelimit.WindowStore
	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory stores", zap.Error(err))
		historyStore = history.NewMemoryStore(cfg.HistoryWindow)
		windowStore = ratelimit.NewMemoryStore()
	} else {
		defer store.Close()
		historyStore = history.NewRedisStore(store.Client, cfg.HistoryWindow)
		windowStore = ratelimit.NewRedisStore(store.Client)
	}

	limiter := ratelimit.NewLimiter(windowStore, ratelimit.Config{
		Limit:   cfg.RateLimitPerWindow,
		Window:  cfg.RateLimitWindow,
		Enabled: cfg.RateLimitEnabled,
	}, metricsRegistry, logger)

	var analyticsSvc analytics.Service
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN, metricsRegistry)
		if err != nil {
			logger.Warn("clickhouse unavailable, detections will not be recorded", zap.Error(err))
		} else {
			defer ch.Close()
			analyticsSvc = ch
		}
	}

	var geoSvc *geoip.GeoIP
	if cfg.GeoIPDB != "" {
		geoSvc, err = geoip.Init(cfg.GeoIPDB)
		if err != nil {
			logger.Warn("geoip unavailable", zap.Error(err))
			geoSvc = nil
		} else {
			defer func() { _ = geoSvc.Close() }()
		}
	}

	engine := detect.NewEngine(detect.Config{
		MinConfidence:   cfg.MinConfidence,
		Timeout:         cfg.PipelineTimeout,
		HeaderThreshold: cfg.HeaderThreshold,
		Behavioral: detect.BehavioralConfig{
			Window:             cfg.HistoryWindow,
			FrequencyThreshold: cfg.FrequencyThreshold,
			RotationThreshold:  cfg.RotationThreshold,
		},
	}, historyStore, limiter, revenue.NewCalculator(revenue.DefaultConfig()), policy.Default(cfg.MinConfidence), logger, metricsRegistry)
	engine.SetSignatures(detect.DefaultSignatures())
	engine.SetIPRanges(detect.DefaultIPRanges())

	srvDeps := api.NewServer(logger, engine, limiter, analyticsSvc, geoSvc, pg, metricsRegistry, cfg)
	if err := srvDeps.Reload(); err != nil {
		logger.Warn("initial override load", zap.Error(err))
	}

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.HandleFunc("/v1/detect", srvDeps.DetectHandler).Methods("POST")
	r.HandleFunc("/v1/check", srvDeps.CheckHandler).Methods("GET")
	r.HandleFunc("/v1/classify", srvDeps.ClassifyHandler).Methods("GET")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")
	r.HandleFunc("/stats", srvDeps.StatsHandler).Methods("GET")

	// metrics endpoint (includes rate limiting metrics)
	r.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = r
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(r, cfg.ServiceName)
	}

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Detection server running",
		zap.String("addr", addr),
		zap.Int("signatures", engine.SignatureCount()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 && pg != nil {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
