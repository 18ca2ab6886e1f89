package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptRecords = `
CREATE TABLE IF NOT EXISTS transcript_records (
    id         TEXT         PRIMARY KEY,
    speaker    TEXT         NOT NULL,
    text       TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    sources    JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_transcript_records_timestamp
    ON transcript_records (timestamp);

CREATE INDEX IF NOT EXISTS idx_transcript_records_speaker
    ON transcript_records (speaker);
`

const ddlFacts = `
CREATE TABLE IF NOT EXISTS facts (
    id         TEXT         PRIMARY KEY,
    text       TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates all tables and indexes required by [Store] if they do not
// already exist. It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlTranscriptRecords, ddlFacts} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
