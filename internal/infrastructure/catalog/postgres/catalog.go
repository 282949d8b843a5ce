// Package postgres persists an audit trail of pipeline ingestion runs.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// Catalog records which documents were ingested, how many chunks each
// produced and how many of those chunks carry degraded embeddings. The
// catalog is an audit surface only: the in-memory index is the source
// of truth for retrieval and the pipeline treats catalog failures as
// non-fatal.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

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

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingested_documents (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	extension TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	degraded_chunks INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingested_documents_status ON ingested_documents(status);
CREATE INDEX IF NOT EXISTS idx_ingested_documents_indexed_at ON ingested_documents(indexed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// RecordDocument upserts the ingestion outcome for a document. Reindex
// runs rewrite the row for the same document ID.
func (c *Catalog) RecordDocument(ctx context.Context, doc domain.Document, chunkCount, degradedCount int) error {
	_, err := c.db.ExecContext(ctx, `
INSERT INTO ingested_documents (id, source_path, extension, chunk_count, degraded_chunks, status, error_message, indexed_at)
VALUES ($1,$2,$3,$4,$5,'indexed','',$6)
ON CONFLICT (id) DO UPDATE
SET source_path = EXCLUDED.source_path,
    extension = EXCLUDED.extension,
    chunk_count = EXCLUDED.chunk_count,
    degraded_chunks = EXCLUDED.degraded_chunks,
    status = 'indexed',
    error_message = '',
    indexed_at = EXCLUDED.indexed_at
`, doc.ID, doc.SourcePath, doc.Extension, chunkCount, degradedCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

// MarkFailed upserts a failed row for the document. The document may
// never have been recorded before, so this cannot be a plain UPDATE.
func (c *Catalog) MarkFailed(ctx context.Context, doc domain.Document, reason string) error {
	_, err := c.db.ExecContext(ctx, `
INSERT INTO ingested_documents (id, source_path, extension, chunk_count, degraded_chunks, status, error_message, indexed_at)
VALUES ($1,$2,$3,0,0,'failed',$4,$5)
ON CONFLICT (id) DO UPDATE
SET status = 'failed',
    error_message = EXCLUDED.error_message,
    indexed_at = EXCLUDED.indexed_at
`, doc.ID, doc.SourcePath, doc.Extension, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}
