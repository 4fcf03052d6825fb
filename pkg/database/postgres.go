package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/provider-admission-api/pkg/config"
)

// Schema creates the tables the service owns. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS provider_applications (
    id                          UUID PRIMARY KEY,
    applicant_id                TEXT NOT NULL,
    payload                     JSONB NOT NULL,
    status                      TEXT NOT NULL DEFAULT 'submitted',
    automated_score             INTEGER,
    approval_tier               TEXT,
    auto_approved               BOOLEAN NOT NULL DEFAULT FALSE,
    score_breakdown             JSONB,
    reviewer_notes              TEXT,
    technical_assessment_score  INTEGER,
    reviewed_by                 TEXT,
    notification_sent           BOOLEAN NOT NULL DEFAULT FALSE,
    notification_sent_at        TIMESTAMPTZ,
    submitted_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reviewed_at                 TIMESTAMPTZ,
    updated_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_provider_applications_applicant ON provider_applications (applicant_id);
CREATE INDEX IF NOT EXISTS idx_provider_applications_status ON provider_applications (status);
CREATE UNIQUE INDEX IF NOT EXISTS uq_provider_applications_active_applicant ON provider_applications (applicant_id)
    WHERE status IN ('submitted', 'in_review', 'approved');
CREATE INDEX IF NOT EXISTS idx_provider_applications_unnotified ON provider_applications (updated_at) WHERE notification_sent = FALSE;

CREATE TABLE IF NOT EXISTS audit_logs (
    id           UUID PRIMARY KEY,
    user_id      TEXT,
    action       TEXT NOT NULL,
    resource     TEXT NOT NULL,
    resource_id  TEXT,
    old_values   JSONB,
    new_values   JSONB,
    ip_address   TEXT,
    user_agent   TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
