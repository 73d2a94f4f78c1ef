package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Postgres wraps a postgres DB connection holding the curated signature
// and IP range overrides. The built-in tables ship with the binary;
// operators maintain additions and rate changes here.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the override tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS bot_signatures (
    id SERIAL PRIMARY KEY,
    pattern TEXT NOT NULL,
    company TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    confidence INT NOT NULL,
    revenue_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    position INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS bot_ip_ranges (
    id SERIAL PRIMARY KEY,
    company TEXT NOT NULL,
    category TEXT NOT NULL,
    cidr CIDR NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_bot_signatures_active ON bot_signatures (active, position);
CREATE INDEX IF NOT EXISTS idx_bot_ip_ranges_active ON bot_ip_ranges (active);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the override tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadSignatures returns active signature overrides ordered by
// position. Overrides are matched ahead of the built-in table.
func (p *Postgres) LoadSignatures(ctx context.Context) ([]models.BotSignature, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT pattern, company, category, confidence, revenue_rate
		 FROM bot_signatures WHERE active = TRUE ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load signatures: %w", err)
	}
	defer rows.Close()

	var sigs []models.BotSignature
	for rows.Next() {
		var s models.BotSignature
		if err := rows.Scan(&s.Pattern, &s.Company, &s.Category, &s.Confidence, &s.RevenueRate); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, s)
	}
	return sigs, rows.Err()
}

// LoadIPRanges returns active IP range overrides.
func (p *Postgres) LoadIPRanges(ctx context.Context) ([]models.IPRange, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT company, category, cidr FROM bot_ip_ranges WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load ip ranges: %w", err)
	}
	defer rows.Close()

	var ranges []models.IPRange
	for rows.Next() {
		var r models.IPRange
		if err := rows.Scan(&r.Company, &r.Category, &r.CIDR); err != nil {
			return nil, fmt.Errorf("scan ip range: %w", err)
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}
