package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/novalabs/nova/pkg/memory"
	"github.com/novalabs/nova/pkg/memory/memstore"
)

func TestStore_TranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	s := memstore.New()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	recs := []memory.TranscriptRecord{
		{ID: "1", Speaker: memory.SpeakerUser, Text: "what's the weather", Timestamp: base},
		{ID: "2", Speaker: memory.SpeakerAssistant, Text: "Sunny, 21 degrees.", Timestamp: base.Add(2 * time.Second),
			Sources: []memory.GroundingSource{{Title: "weather.example", URI: "https://weather.example/now"}}},
		{ID: "3", Speaker: memory.SpeakerUser, Text: "thanks", Timestamp: base.Add(5 * time.Second)},
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
	if len(got) != 3 {
		t.Fatalf("got %d records; want 3", len(got))
	}
	if got[1].Text != "Sunny, 21 degrees." || len(got[1].Sources) != 1 {
		t.Errorf("assistant record not preserved: %+v", got[1])
	}

	onlyUser, err := s.ListRecords(ctx, memory.TranscriptQuery{Speaker: memory.SpeakerUser})
	if err != nil {
		t.Fatalf("ListRecords(user): %v", err)
	}
	if len(onlyUser) != 2 {
		t.Errorf("got %d user records; want 2", len(onlyUser))
	}

	late, err := s.ListRecords(ctx, memory.TranscriptQuery{After: base.Add(time.Second)})
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

func TestStore_ListRecordsEmpty(t *testing.T) {
	t.Parallel()

	got, err := memstore.New().ListRecords(context.Background(), memory.TranscriptQuery{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if got == nil {
		t.Error("ListRecords returned nil; want empty slice")
	}
}

func TestStore_FactsUpsert(t *testing.T) {
	t.Parallel()

	s := memstore.New()
	ctx := context.Background()

	if err := s.SaveFact(ctx, memory.Fact{ID: "a", Text: "user prefers metric units"}); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := s.SaveFact(ctx, memory.Fact{ID: "b", Text: "user lives in Berlin"}); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := s.SaveFact(ctx, memory.Fact{ID: "a", Text: "user prefers imperial units"}); err != nil {
		t.Fatalf("SaveFact(upsert): %v", err)
	}

	facts, err := s.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("got %d facts; want 2", len(facts))
	}
	if facts[0].Text != "user prefers imperial units" {
		t.Errorf("fact a = %q; want replaced text", facts[0].Text)
	}
}
