// Package sqlite provides a [memory.Store] backed by a local SQLite database.
//
// It is the default durable backend for single-machine deployments: no server
// to run, one file on disk, WAL mode for concurrent readers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/novalabs/nova/pkg/memory"
	_ "modernc.org/sqlite"
)

var _ memory.Store = (*Store)(nil)

// Store wraps a SQLite database holding transcript records and knowledge
// facts. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates the database file at path (including parent directories) if it
// does not exist, applies the schema, and returns a ready store.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcript_records (
    id TEXT PRIMARY KEY,
    speaker TEXT NOT NULL,
    text TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    sources TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_transcript_timestamp ON transcript_records(timestamp);
CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendRecord implements [memory.TranscriptStore].
func (s *Store) AppendRecord(ctx context.Context, rec memory.TranscriptRecord) error {
	sources, err := json.Marshal(sourcesOrEmpty(rec.Sources))
	if err != nil {
		return fmt.Errorf("sqlite store: marshal sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcript_records(id, speaker, text, timestamp, sources)
		 VALUES(?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Speaker), rec.Text, rec.Timestamp.UTC().Format(time.RFC3339Nano), string(sources))
	if err != nil {
		return fmt.Errorf("sqlite store: append record: %w", err)
	}
	return nil
}

// ListRecords implements [memory.TranscriptStore].
func (s *Store) ListRecords(ctx context.Context, q memory.TranscriptQuery) ([]memory.TranscriptRecord, error) {
	args := []any{}
	conditions := []string{}
	if q.Speaker != "" {
		conditions = append(conditions, "speaker = ?")
		args = append(args, string(q.Speaker))
	}
	if !q.After.IsZero() {
		conditions = append(conditions, "timestamp > ?")
		args = append(args, q.After.UTC().Format(time.RFC3339Nano))
	}

	query := "SELECT id, speaker, text, timestamp, sources FROM transcript_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list records: %w", err)
	}
	defer rows.Close()

	out := []memory.TranscriptRecord{}
	for rows.Next() {
		var (
			rec     memory.TranscriptRecord
			speaker string
			ts      string
			sources string
		)
		if err := rows.Scan(&rec.ID, &speaker, &rec.Text, &ts, &sources); err != nil {
			return nil, fmt.Errorf("sqlite store: scan record: %w", err)
		}
		rec.Speaker = memory.Speaker(speaker)
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
			return nil, fmt.Errorf("sqlite store: unmarshal sources: %w", err)
		}
		if len(rec.Sources) == 0 {
			rec.Sources = nil
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list records: %w", err)
	}
	return out, nil
}

// SaveFact implements [memory.KnowledgeStore]. Saving a fact with an existing
// ID replaces it.
func (s *Store) SaveFact(ctx context.Context, fact memory.Fact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts(id, text, timestamp) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text=excluded.text, timestamp=excluded.timestamp`,
		fact.ID, fact.Text, fact.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite store: save fact: %w", err)
	}
	return nil
}

// ListFacts implements [memory.KnowledgeStore].
func (s *Store) ListFacts(ctx context.Context) ([]memory.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, timestamp FROM facts ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list facts: %w", err)
	}
	defer rows.Close()

	out := []memory.Fact{}
	for rows.Next() {
		var (
			fact memory.Fact
			ts   string
		)
		if err := rows.Scan(&fact.ID, &fact.Text, &ts); err != nil {
			return nil, fmt.Errorf("sqlite store: scan fact: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			fact.Timestamp = parsed
		}
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list facts: %w", err)
	}
	return out, nil
}

func sourcesOrEmpty(sources []memory.GroundingSource) []memory.GroundingSource {
	if sources == nil {
		return []memory.GroundingSource{}
	}
	return sources
}
