package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := verifyConn(db); err != nil {
		return nil, err
	}
	return db, nil
}

// verifyConn closes the handle on a failed ping so a bad DSN does not leak
// the pool.
func verifyConn(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/retrain startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS queue_items (
	transcription_id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	mrn TEXT NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	content JSONB,
	submitted_at TIMESTAMPTZ NOT NULL,
	claimed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_queue_items_status_submitted ON queue_items(status, submitted_at);
CREATE INDEX IF NOT EXISTS idx_queue_items_owner ON queue_items(owner_id, submitted_at DESC);

CREATE TABLE IF NOT EXISTS annotations (
	id BIGSERIAL PRIMARY KEY,
	subject_record_id TEXT NOT NULL,
	mrn TEXT NOT NULL,
	transcription_id TEXT NOT NULL,
	section_name TEXT NOT NULL,
	source_text TEXT NOT NULL,
	entity_text TEXT NOT NULL,
	span_start INTEGER NOT NULL,
	span_end INTEGER NOT NULL,
	label TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_created_at ON annotations(created_at DESC);

CREATE TABLE IF NOT EXISTS review_history (
	id BIGSERIAL PRIMARY KEY,
	transcription_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	mrn TEXT NOT NULL,
	filename TEXT NOT NULL,
	content JSONB NOT NULL,
	diseases JSONB NOT NULL DEFAULT '[]'::jsonb,
	medications JSONB NOT NULL DEFAULT '[]'::jsonb,
	reviewed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_history_owner ON review_history(owner_id, reviewed_at DESC);
CREATE INDEX IF NOT EXISTS idx_review_history_mrn ON review_history(mrn);

CREATE TABLE IF NOT EXISTS model_versions (
	version TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	remote_ref TEXT,
	active BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
