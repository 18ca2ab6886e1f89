// Package postgres provides a [memory.Store] backed by PostgreSQL, for
// deployments where several assistant instances share one history.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novalabs/nova/pkg/memory"
)

var _ memory.Store = (*Store)(nil)

// Store holds a single [pgxpool.Pool] and implements both persistence
// concerns on it. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// pings it, and runs [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// AppendRecord implements [memory.TranscriptStore].
func (s *Store) AppendRecord(ctx context.Context, rec memory.TranscriptRecord) error {
	const q = `
		INSERT INTO transcript_records (id, speaker, text, timestamp, sources)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		string(rec.Speaker),
		rec.Text,
		rec.Timestamp,
		sourcesToJSON(rec.Sources),
	)
	if err != nil {
		return fmt.Errorf("postgres store: append record: %w", err)
	}
	return nil
}

// ListRecords implements [memory.TranscriptStore].
func (s *Store) ListRecords(ctx context.Context, query memory.TranscriptQuery) ([]memory.TranscriptRecord, error) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{}
	if query.Speaker != "" {
		conditions = append(conditions, "speaker = "+next(string(query.Speaker)))
	}
	if !query.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(query.After))
	}

	q := "SELECT id, speaker, text, timestamp, sources FROM transcript_records"
	if len(conditions) > 0 {
		q += "\nWHERE " + strings.Join(conditions, "\n  AND ")
	}
	q += "\nORDER BY timestamp"
	if query.Limit > 0 {
		q += "\nLIMIT " + next(query.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.TranscriptRecord, error) {
		var (
			rec     memory.TranscriptRecord
			speaker string
			sources []sourceJSON
		)
		if err := row.Scan(&rec.ID, &speaker, &rec.Text, &rec.Timestamp, &sources); err != nil {
			return memory.TranscriptRecord{}, err
		}
		rec.Speaker = memory.Speaker(speaker)
		rec.Sources = sourcesFromJSON(sources)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if records == nil {
		records = []memory.TranscriptRecord{}
	}
	return records, nil
}

// SaveFact implements [memory.KnowledgeStore]. Saving a fact with an existing
// ID replaces it.
func (s *Store) SaveFact(ctx context.Context, fact memory.Fact) error {
	const q = `
		INSERT INTO facts (id, text, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET text = excluded.text, timestamp = excluded.timestamp`

	if _, err := s.pool.Exec(ctx, q, fact.ID, fact.Text, fact.Timestamp); err != nil {
		return fmt.Errorf("postgres store: save fact: %w", err)
	}
	return nil
}

// ListFacts implements [memory.KnowledgeStore].
func (s *Store) ListFacts(ctx context.Context) ([]memory.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, text, timestamp FROM facts ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list facts: %w", err)
	}

	facts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[memory.Fact])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if facts == nil {
		facts = []memory.Fact{}
	}
	return facts, nil
}

// sourceJSON is the JSONB wire shape of a grounding source. pgx marshals and
// unmarshals it through the jsonb column codec.
type sourceJSON struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

func sourcesToJSON(sources []memory.GroundingSource) []sourceJSON {
	out := make([]sourceJSON, len(sources))
	for i, src := range sources {
		out[i] = sourceJSON{Title: src.Title, URI: src.URI}
	}
	return out
}

func sourcesFromJSON(sources []sourceJSON) []memory.GroundingSource {
	if len(sources) == 0 {
		return nil
	}
	out := make([]memory.GroundingSource, len(sources))
	for i, src := range sources {
		out[i] = memory.GroundingSource{Title: src.Title, URI: src.URI}
	}
	return out
}
