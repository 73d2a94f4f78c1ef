package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string

	RedisAddr     string
	ClickHouseDSN string
	PostgresDSN   string
	GeoIPDB       string

	// Detection thresholds
	MinConfidence   int
	HeaderThreshold int
	PipelineTimeout time.Duration

	// Behavioral analysis
	HistoryWindow      time.Duration
	FrequencyThreshold int
	RotationThreshold  int

	// Rate limiting
	RateLimitEnabled   bool
	RateLimitPerWindow int
	RateLimitWindow    time.Duration

	// Analytics
	AnalyticsSampleRate float64

	// Signature overrides are re-pulled from Postgres at this interval.
	ReloadInterval time.Duration

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8686")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "crawlmeter")

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "")
	cfg.GeoIPDB = getenv("GEOIP_DB", "")

	// Threshold defaults sit between the permissive and strict presets
	// seen in the field; tune per deployment.
	cfg.MinConfidence = envInt("MIN_CONFIDENCE", 50)
	cfg.HeaderThreshold = envInt("HEADER_THRESHOLD", 40)
	cfg.PipelineTimeout = envDuration("PIPELINE_TIMEOUT", 75*time.Millisecond)

	cfg.HistoryWindow = envDuration("HISTORY_WINDOW", time.Minute)
	cfg.FrequencyThreshold = envInt("FREQUENCY_THRESHOLD", 10)
	cfg.RotationThreshold = envInt("ROTATION_THRESHOLD", 3)

	cfg.RateLimitEnabled = envBool("RATE_LIMIT_ENABLED", true)
	cfg.RateLimitPerWindow = envInt("RATE_LIMIT_PER_WINDOW", 120)
	cfg.RateLimitWindow = envDuration("RATE_LIMIT_WINDOW", time.Minute)

	cfg.AnalyticsSampleRate = envFloat("ANALYTICS_SAMPLE_RATE", 0.1)

	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 5*time.Minute)

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
