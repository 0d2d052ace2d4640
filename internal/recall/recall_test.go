package recall

import (
	"testing"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecallFindsDirectMatch(t *testing.T) {
	s := newTestStore(t)
	cfg := config.Defaults()
	now := time.Now()

	if err := s.InsertChunks("memory/MEMORY.md", 1, []store.NewChunk{
		{Heading: "Stack", Content: "We decided to use Postgres for the primary database.", LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision},
		{Heading: "Weather", Content: "It rained a lot this week in the city.", LineStart: 3, LineEnd: 4, ChunkType: store.TypeRaw},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := Recall(s, cfg, "postgres database", Options{}, now)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	if results[0].Heading != "Stack" {
		t.Errorf("unexpected heading: %q", results[0].Heading)
	}
}

func TestRecallFallsBackToORQuery(t *testing.T) {
	s := newTestStore(t)
	cfg := config.Defaults()
	now := time.Now()

	if err := s.InsertChunks("memory/MEMORY.md", 1, []store.NewChunk{
		{Heading: "Auth", Content: "We configured authentication for the service.", LineStart: 1, LineEnd: 2},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// "auth database" as an AND query matches nothing (no chunk has both
	// terms); the OR fallback with the "auth" alias should still surface it.
	results, err := Recall(s, cfg, "auth database", Options{}, now)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected OR fallback to find 1 result, got %d", len(results))
	}
}

func TestRecallFiltersExcludedPaths(t *testing.T) {
	s := newTestStore(t)
	cfg := config.Defaults()
	now := time.Now()

	if err := s.InsertChunks("ingest/transcript.md", 1, []store.NewChunk{
		{Heading: "Raw", Content: "a transcript line about postgres migration", LineStart: 1, LineEnd: 2},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := Recall(s, cfg, "postgres migration", Options{}, now)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected ingest/ paths to be excluded from recall, got %d results", len(results))
	}
}

func TestRecallMalformedQueryReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	cfg := config.Defaults()
	results, err := Recall(s, cfg, "and or not", Options{}, time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for an all-stopword query, got %v", results)
	}
}

func TestRecallAttachesContext(t *testing.T) {
	s := newTestStore(t)
	cfg := config.Defaults()
	now := time.Now()

	if err := s.InsertChunks("memory/MEMORY.md", 1, []store.NewChunk{
		{Heading: "Before", Content: "some unrelated content before the target chunk", LineStart: 1, LineEnd: 2},
		{Heading: "Target", Content: "the migration to postgres happened here", LineStart: 3, LineEnd: 4},
		{Heading: "After", Content: "some unrelated content after the target chunk", LineStart: 5, LineEnd: 6},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := Recall(s, cfg, "postgres migration", Options{Context: 1}, now)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Context) != 3 {
		t.Errorf("expected 3 chunks in the ±1 context window, got %d", len(results[0].Context))
	}
}

func TestParseSinceRelative(t *testing.T) {
	now := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)
	got := parseSince("7d", now)
	if got == nil {
		t.Fatal("expected non-nil since")
	}
	want := now.AddDate(0, 0, -7)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseSinceAbsolute(t *testing.T) {
	now := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)
	got := parseSince("2026-01-15", now)
	if got == nil {
		t.Fatal("expected non-nil since")
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 15 {
		t.Errorf("unexpected parsed date: %v", got)
	}
}
