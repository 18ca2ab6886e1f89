package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/novalabs/nova/pkg/memory"
	"github.com/novalabs/nova/pkg/memory/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "nova.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_TranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	recs := []memory.TranscriptRecord{
		{ID: "1", Speaker: memory.SpeakerUser, Text: "find a cafe nearby", Timestamp: base},
		{ID: "2", Speaker: memory.SpeakerAssistant, Text: "Cafe Florio is two blocks away.", Timestamp: base.Add(3 * time.Second),
			Sources: []memory.GroundingSource{
				{Title: "Cafe Florio", URI: "https://maps.example/florio"},
				{Title: "City guide", URI: "https://guide.example/cafes"},
			}},
	}
	for _, rec := range recs {
		if err := s.AppendRecord(ctx, rec); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	got, err := s.ListRecords(ctx, memory.TranscriptQuery{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records; want 2", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("records out of order: %q, %q", got[0].ID, got[1].ID)
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v; want %v", got[0].Timestamp, base)
	}
	if got[0].Sources != nil {
		t.Errorf("user record sources = %v; want nil", got[0].Sources)
	}
	if len(got[1].Sources) != 2 || got[1].Sources[0].URI != "https://maps.example/florio" {
		t.Errorf("assistant sources not preserved: %+v", got[1].Sources)
	}
}

func TestStore_ListRecordsFilters(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	for i, rec := range []memory.TranscriptRecord{
		{ID: "1", Speaker: memory.SpeakerUser, Text: "hello"},
		{ID: "2", Speaker: memory.SpeakerAssistant, Text: "Hi there."},
		{ID: "3", Speaker: memory.SpeakerUser, Text: "bye"},
	} {
		rec.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := s.AppendRecord(ctx, rec); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	users, err := s.ListRecords(ctx, memory.TranscriptQuery{Speaker: memory.SpeakerUser})
	if err != nil {
		t.Fatalf("ListRecords(user): %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d user records; want 2", len(users))
	}

	late, err := s.ListRecords(ctx, memory.TranscriptQuery{After: base})
	if err != nil {
		t.Fatalf("ListRecords(after): %v", err)
	}
	if len(late) != 2 {
		t.Errorf("got %d records after cutoff; want 2", len(late))
	}

	limited, err := s.ListRecords(ctx, memory.TranscriptQuery{Limit: 1})
	if err != nil {
		t.Fatalf("ListRecords(limit): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "1" {
		t.Errorf("limited listing = %+v; want oldest record only", limited)
	}
}

func TestStore_FactsUpsert(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveFact(ctx, memory.Fact{ID: "a", Text: "user's dog is called Rex", Timestamp: base}); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := s.SaveFact(ctx, memory.Fact{ID: "a", Text: "user's dog is called Max", Timestamp: base.Add(time.Minute)}); err != nil {
		t.Fatalf("SaveFact(upsert): %v", err)
	}

	facts, err := s.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("got %d facts; want 1", len(facts))
	}
	if facts[0].Text != "user's dog is called Max" {
		t.Errorf("fact text = %q; want replaced text", facts[0].Text)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nova.db")

	s, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveFact(ctx, memory.Fact{ID: "a", Text: "persisted", Timestamp: time.Now()}); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	facts, err := s2.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(facts) != 1 || facts[0].Text != "persisted" {
		t.Errorf("facts after reopen = %+v; want the saved fact", facts)
	}
}
