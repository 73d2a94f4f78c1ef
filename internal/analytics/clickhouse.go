package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/observability"
)

// Service defines the interface for detection analytics. Implementations
// should return ErrUnavailable when the underlying storage is not
// configured rather than failing the caller.
type Service interface {
	// RecordDetection appends one verdict row.
	RecordDetection(ctx context.Context, v models.Verdict, rc models.RequestContext) error
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB      *sql.DB
	Metrics observability.MetricsRegistry
}

// DetectionRecord mirrors a row in the detections table.
type DetectionRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	URL         string    `json:"url"`
	IsBot       bool      `json:"is_bot"`
	Confidence  int32     `json:"confidence"`
	PrimaryType string    `json:"primary_type"`
	Company     string    `json:"company"`
	Methods     string    `json:"methods"`
	Revenue     float64   `json:"revenue"`
	Action      string    `json:"action"`
	Country     string    `json:"country"`
	DeviceType  string    `json:"device_type"`
}

// InitClickHouse connects to ClickHouse and ensures the detections table exists.
func InitClickHouse(dsn string, metrics observability.MetricsRegistry) (*Analytics, error) {
	driverName, err := otelsql.Register("clickhouse",
		otelsql.WithAttributes(attribute.String("db.system", "clickhouse")),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS detections (
       timestamp    DateTime,
       request_id   String,
       client_ip    String,
       user_agent   String,
       url          String,
       is_bot       UInt8,
       confidence   Int32,
       primary_type String,
       company      String,
       methods      String,
       revenue      Float64,
       action       String,
       country      String,
       device_type  String
   ) ENGINE=MergeTree() ORDER BY (is_bot, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db, Metrics: metrics}, nil
}

// RecordDetection inserts a single verdict row into the detections table.
func (a *Analytics) RecordDetection(ctx context.Context, v models.Verdict, rc models.RequestContext) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}

	isBot := uint8(0)
	if v.IsBot {
		isBot = 1
	}
	_, err := a.DB.ExecContext(ctx,
		`INSERT INTO detections
		 (timestamp, request_id, client_ip, user_agent, url, is_bot, confidence,
		  primary_type, company, methods, revenue, action, country, device_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Timestamp, v.RequestID, rc.ClientIP, rc.UserAgent, rc.URL, isBot,
		int32(v.Confidence), v.PrimaryType, v.Company, strings.Join(v.Methods, ","),
		v.Revenue, string(v.Action), v.Country, v.DeviceType,
	)
	if err != nil {
		if a.Metrics != nil {
			a.Metrics.IncrementStoreErrors("analytics")
		}
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
