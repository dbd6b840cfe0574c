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

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the tables. Runs under an advisory lock so api and
// worker startups do not race on the DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	tender_name TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size_bytes BIGINT NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	processing_progress INTEGER NOT NULL DEFAULT 0,
	attempt INTEGER NOT NULL DEFAULT 1,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS requirements (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	requirement_text TEXT NOT NULL,
	category TEXT NOT NULL,
	subcategory TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	page_number INTEGER NOT NULL DEFAULT 0,
	extraction_order INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requirements_document ON requirements(document_id, extraction_order);

CREATE TABLE IF NOT EXISTS match_results (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	requirement_id TEXT NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
	kb_item_id TEXT NOT NULL DEFAULT '',
	match_percentage DOUBLE PRECISION NOT NULL,
	matched_content TEXT NOT NULL DEFAULT '',
	rank INTEGER,
	computed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (requirement_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_match_results_document ON match_results(document_id);

CREATE TABLE IF NOT EXISTS match_summaries (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	eligibility_match DOUBLE PRECISION,
	technical_match DOUBLE PRECISION,
	compliance_match DOUBLE PRECISION,
	overall_match DOUBLE PRECISION,
	total_requirements INTEGER NOT NULL DEFAULT 0,
	matched_requirements INTEGER NOT NULL DEFAULT 0,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	requirement_id TEXT NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
	response_text TEXT NOT NULL,
	status TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_by TEXT NOT NULL DEFAULT '',
	approved_by TEXT NOT NULL DEFAULT '',
	approved_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, requirement_id)
);

CREATE INDEX IF NOT EXISTS idx_responses_document_status ON responses(document_id, status);

CREATE TABLE IF NOT EXISTS response_comments (
	id TEXT PRIMARY KEY,
	response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
	comment_text TEXT NOT NULL,
	created_by TEXT NOT NULL,
	resolved BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_response_comments_response ON response_comments(response_id);

CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	export_key TEXT NOT NULL UNIQUE,
	format TEXT NOT NULL,
	file_path TEXT NOT NULL,
	exported_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exports_document ON exports(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
