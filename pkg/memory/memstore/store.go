// Package memstore provides an in-memory [memory.Store] implementation.
//
// It backs the default configuration (no persistence configured) and the test
// suites of packages that only need a working store, not a durable one.
package memstore

import (
	"context"
	"sync"

	"github.com/novalabs/nova/pkg/memory"
)

var _ memory.Store = (*Store)(nil)

// Store keeps transcripts and facts in process memory. All data is lost when
// the process exits. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []memory.TranscriptRecord
	facts   []memory.Fact
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

// AppendRecord implements [memory.TranscriptStore].
func (s *Store) AppendRecord(_ context.Context, rec memory.TranscriptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// ListRecords implements [memory.TranscriptStore].
func (s *Store) ListRecords(_ context.Context, q memory.TranscriptQuery) ([]memory.TranscriptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []memory.TranscriptRecord{}
	for _, rec := range s.records {
		if q.Speaker != "" && rec.Speaker != q.Speaker {
			continue
		}
		if !q.After.IsZero() && !rec.Timestamp.After(q.After) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// SaveFact implements [memory.KnowledgeStore]. Saving a fact with an existing
// ID replaces it in place.
func (s *Store) SaveFact(_ context.Context, fact memory.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.facts {
		if f.ID == fact.ID {
			s.facts[i] = fact
			return nil
		}
	}
	s.facts = append(s.facts, fact)
	return nil
}

// ListFacts implements [memory.KnowledgeStore].
func (s *Store) ListFacts(_ context.Context) ([]memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]memory.Fact, len(s.facts))
	copy(out, s.facts)
	return out, nil
}

// Close implements [memory.Store]. It is a no-op.
func (s *Store) Close() error { return nil }
