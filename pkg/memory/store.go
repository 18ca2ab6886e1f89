// Package memory defines the persistence layer for conversation history and
// long-term knowledge.
//
// Two concerns are kept separate:
//
//   - [TranscriptStore]: a time-ordered log of finalized [TranscriptRecord]
//     turns, including grounding citations.
//   - [KnowledgeStore]: durable [Fact] values the model saves through the
//     save_knowledge tool and that survive across sessions.
//
// The interfaces are public so that external packages can supply alternative
// backends (in-memory, SQLite, Postgres, …) without depending on internals.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// TranscriptQuery narrows a transcript listing. All non-zero fields are
// applied as AND conditions.
type TranscriptQuery struct {
	// Speaker restricts results to one side of the conversation.
	// An empty value matches both speakers.
	Speaker Speaker

	// After filters records finalized after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// TranscriptStore is the append-only log of finalized conversation turns.
//
// Records must be returned in chronological order. Implementations must be
// safe for concurrent use.
type TranscriptStore interface {
	// AppendRecord appends a finalized turn to the log.
	// Returns an error only on persistent storage failure.
	AppendRecord(ctx context.Context, rec TranscriptRecord) error

	// ListRecords returns records matching q, oldest first.
	// Returns an empty (non-nil) slice when no records match.
	ListRecords(ctx context.Context, q TranscriptQuery) ([]TranscriptRecord, error)
}

// KnowledgeStore holds long-term facts saved by the save_knowledge tool.
//
// Implementations must be safe for concurrent use.
type KnowledgeStore interface {
	// SaveFact stores a fact. If a fact with the same ID already exists it is
	// replaced.
	SaveFact(ctx context.Context, fact Fact) error

	// ListFacts returns all stored facts, oldest first.
	// Returns an empty (non-nil) slice when no facts exist.
	ListFacts(ctx context.Context) ([]Fact, error)
}

// Store combines both persistence concerns behind a single backend.
type Store interface {
	TranscriptStore
	KnowledgeStore

	// Close releases any resources held by the backend.
	Close() error
}
