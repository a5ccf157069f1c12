package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/research-compare/internal/storage"
)

func testRecord(id string) *storage.ComparisonRecord {
	return &storage.ComparisonRecord{
		ID:        id,
		Query:     "what changed in Go 1.25",
		Request:   json.RawMessage(`{"query":"what changed in Go 1.25"}`),
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Duration:  90 * time.Second,
		Outcomes: []storage.OutcomeRecord{
			{
				ComparisonID: id,
				Provider:     "perplexity",
				Position:     0,
				Status:       "succeeded",
				Raw:          json.RawMessage(`{"choices":[]}`),
				Normalized:   json.RawMessage(`{"provider":"perplexity","status":"succeeded"}`),
				DurationNS:   int64(80 * time.Second),
			},
			{
				ComparisonID: id,
				Provider:     "gemini",
				Position:     1,
				Status:       "failed",
				Normalized:   json.RawMessage(`{"provider":"gemini","status":"failed"}`),
				DurationNS:   int64(20 * time.Second),
			},
		},
	}
}

func TestStore_SaveAndGetComparison(t *testing.T) {
	// Use in-memory SQLite with shared cache for testing
	store, err := New("file:memdb1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	rec := testRecord("cmp-1")
	if err := store.SaveComparison(context.Background(), rec); err != nil {
		t.Fatalf("SaveComparison() error = %v", err)
	}

	got, err := store.GetComparison(context.Background(), "cmp-1")
	if err != nil {
		t.Fatalf("GetComparison() error = %v", err)
	}

	if got.Query != rec.Query {
		t.Errorf("Query = %q, want %q", got.Query, rec.Query)
	}
	if got.Duration != rec.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, rec.Duration)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("Outcomes = %d, want 2", len(got.Outcomes))
	}
	// Outcomes come back in submission order.
	if got.Outcomes[0].Provider != "perplexity" || got.Outcomes[1].Provider != "gemini" {
		t.Errorf("order = %s, %s", got.Outcomes[0].Provider, got.Outcomes[1].Provider)
	}
	if got.Outcomes[1].Status != "failed" {
		t.Errorf("gemini status = %s", got.Outcomes[1].Status)
	}
	if string(got.Outcomes[0].Raw) != `{"choices":[]}` {
		t.Errorf("Raw = %s", got.Outcomes[0].Raw)
	}
}

func TestStore_GetComparisonNotFound(t *testing.T) {
	store, err := New("file:memdb2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	_, err = store.GetComparison(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListComparisons(t *testing.T) {
	store, err := New("file:memdb3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	older := testRecord("cmp-old")
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := testRecord("cmp-new")
	newer.StartedAt = time.Now()

	for _, rec := range []*storage.ComparisonRecord{older, newer} {
		if err := store.SaveComparison(context.Background(), rec); err != nil {
			t.Fatalf("SaveComparison(%s) error = %v", rec.ID, err)
		}
	}

	records, err := store.ListComparisons(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListComparisons() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].ID != "cmp-new" || records[1].ID != "cmp-old" {
		t.Errorf("order = %s, %s", records[0].ID, records[1].ID)
	}
	if len(records[0].Outcomes) != 2 {
		t.Errorf("outcomes not loaded for listed record")
	}

	limited, err := store.ListComparisons(context.Background(), storage.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("ListComparisons(limit=1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "cmp-new" {
		t.Errorf("limited = %+v", limited)
	}
}
