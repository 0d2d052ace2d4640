package remember

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func TestRememberCreatesHeaderAndAppendsLine(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	res, err := Remember(s, cfg, workspace, "We will use Postgres.", "decision", "2026-02-20")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if !res.Created {
		t.Errorf("expected Created true for first write")
	}
	if res.Skipped {
		t.Errorf("expected Skipped false")
	}
	if res.Line != "- [decision] We will use Postgres." {
		t.Errorf("unexpected written line: %q", res.Line)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "memory", "2026-02-20.md"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# Session Log — 2026-02-20\n\n") {
		t.Errorf("expected header line, got %q", text)
	}
	if !strings.Contains(text, "- [decision] We will use Postgres.") {
		t.Errorf("expected appended line, got %q", text)
	}
}

func TestRememberSecondCallSameDaySkipsHeaderButAppends(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	if _, err := Remember(s, cfg, workspace, "First note.", "fact", "2026-02-21"); err != nil {
		t.Fatalf("first Remember: %v", err)
	}
	res, err := Remember(s, cfg, workspace, "Second note.", "fact", "2026-02-21")
	if err != nil {
		t.Fatalf("second Remember: %v", err)
	}
	if res.Created {
		t.Errorf("expected Created false for second write to existing file")
	}

	data, err := os.ReadFile(filepath.Join(workspace, "memory", "2026-02-21.md"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(data)
	if strings.Count(text, "# Session Log") != 1 {
		t.Errorf("expected exactly one header line, got %q", text)
	}
	if !strings.Contains(text, "First note.") || !strings.Contains(text, "Second note.") {
		t.Errorf("expected both lines present, got %q", text)
	}
}

func TestRememberDailyDedupSkipsDuplicateContent(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	if _, err := Remember(s, cfg, workspace, "Creatine 5g daily", "confirmed", "2026-02-20"); err != nil {
		t.Fatalf("first Remember: %v", err)
	}
	res, err := Remember(s, cfg, workspace, "Creatine 5g daily", "confirmed", "2026-02-20")
	if err != nil {
		t.Fatalf("second Remember: %v", err)
	}
	if !res.Skipped {
		t.Errorf("expected duplicate content on the same date to be skipped")
	}

	data, err := os.ReadFile(filepath.Join(workspace, "memory", "2026-02-20.md"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(data), "Creatine 5g daily") != 1 {
		t.Errorf("expected exactly one tagged line, got %q", string(data))
	}
}

func TestRememberDedupIsPerDate(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	if _, err := Remember(s, cfg, workspace, "Same content", "fact", "2026-02-20"); err != nil {
		t.Fatalf("Remember day 1: %v", err)
	}
	res, err := Remember(s, cfg, workspace, "Same content", "fact", "2026-02-21")
	if err != nil {
		t.Fatalf("Remember day 2: %v", err)
	}
	if res.Skipped {
		t.Errorf("expected same content on a different date to not be deduped")
	}
}

func TestRememberDefaultsTagToFact(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	res, err := Remember(s, cfg, workspace, "Untagged note.", "", "2026-02-22")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if !strings.HasPrefix(res.Line, "- [fact] ") {
		t.Errorf("expected default tag fact, got %q", res.Line)
	}
}

func TestRememberRejectsInvalidTag(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	_, err := Remember(s, cfg, workspace, "content", "bogus", "2026-02-22")
	if err == nil {
		t.Fatalf("expected error for invalid tag")
	}
}

func TestRememberRejectsEmptyContent(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	_, err := Remember(s, cfg, workspace, "   \r\n  \n ", "fact", "2026-02-22")
	if err == nil {
		t.Fatalf("expected error for content that sanitizes to empty")
	}
}

func TestRememberCollapsesCRLF(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	res, err := Remember(s, cfg, workspace, "line one\r\nline two\n\nline three", "fact", "2026-02-23")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if strings.ContainsAny(res.Line, "\r\n") {
		t.Errorf("expected CR/LF collapsed to spaces, got %q", res.Line)
	}
	if !strings.Contains(res.Line, "line one line two line three") {
		t.Errorf("expected collapsed single-spaced content, got %q", res.Line)
	}
}

func TestRememberIndexesAppendedLineForRecall(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	if _, err := Remember(s, cfg, workspace, "We decided to use Postgres for storage.", "decision", "2026-02-24"); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	results, err := s.Search(`"postgres"`, store.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected remembered content to be immediately searchable")
	}
	if results[0].ChunkType != store.TypeDecision {
		t.Errorf("expected indexed chunk type decision from the [decision] tag, got %q", results[0].ChunkType)
	}
}

func TestRememberPrefTagIndexesAsPreference(t *testing.T) {
	workspace := t.TempDir()
	s := newTestStore(t)
	cfg := config.Defaults()

	if _, err := Remember(s, cfg, workspace, "I prefer dark mode everywhere.", "pref", "2026-02-25"); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	results, err := s.Search(`"dark" "mode"`, store.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected remembered pref content to be searchable")
	}
	if results[0].ChunkType != store.TypePreference {
		t.Errorf("expected pref tag to index as preference, got %q", results[0].ChunkType)
	}
}
