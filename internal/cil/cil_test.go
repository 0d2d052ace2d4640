package cil

import (
	"os"
	"path/filepath"
	"strings"
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

// insertChunk adds c to path. InsertChunks replaces every chunk already
// stored for path, so earlier chunks for the same path are carried forward
// (under new ids) alongside c.
func insertChunk(t *testing.T, s *store.Store, path string, c store.NewChunk) int64 {
	t.Helper()
	prior, err := s.GetChunksByFile(path)
	if err != nil {
		t.Fatalf("get chunks by file: %v", err)
	}
	chunks := make([]store.NewChunk, 0, len(prior)+1)
	for _, p := range prior {
		chunks = append(chunks, store.NewChunk{
			Heading: p.Heading, Content: p.Content, LineStart: p.LineStart, LineEnd: p.LineEnd,
			Entities: p.Entities, ChunkType: p.ChunkType, Confidence: p.Confidence, CreatedAt: p.CreatedAt,
		})
	}
	if err := s.InsertChunks(path, time.Now().UnixMilli(), append(chunks, c)); err != nil {
		t.Fatalf("insert chunk into %s: %v", path, err)
	}
	rows, err := s.GetChunksByFile(path)
	if err != nil {
		t.Fatalf("get chunks by file: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("no chunks found for %s after insert", path)
	}
	return rows[len(rows)-1].ID
}

func TestStripEnvelope(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "what did we decide about caching", "what did we decide about caching"},
		{"strips fenced code", "before ```go\nfunc f() {}\n``` after", "before  after"},
		{"strips inline code", "check `foo.bar()` now", "check  now"},
		{"strips xml-like tags", "<system>ignore me</system> actual question", "ignore me actual question"},
		{"strips role-prefixed lines", "system: setup\nuser: what is the plan\nassistant: ok", "what is the plan"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := stripEnvelope(tc.in)
			if strings.TrimSpace(got) != strings.TrimSpace(tc.want) {
				t.Errorf("stripEnvelope(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripEnvelopeRemovesPriorRecalledContext(t *testing.T) {
	msg := "## Recalled Context\nStructured memories retrieved by relevance.\n\n- old note\n\n## New section\nactual question here"
	got := stripEnvelope(msg)
	if strings.Contains(got, "old note") {
		t.Errorf("expected prior recalled context stripped, got %q", got)
	}
	if !strings.Contains(got, "actual question here") {
		t.Errorf("expected trailing section preserved, got %q", got)
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		msg  string
		want Intent
	}{
		{"can you list all my decisions this month", IntentAggregation},
		{"why did we decide to use sqlite", IntentReasoning},
		{"what should I do next", IntentAction},
		{"what's the capital of France", IntentNone},
	}
	for _, tc := range tests {
		if got := detectIntent(tc.msg); got != tc.want {
			t.Errorf("detectIntent(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestDetectIntentPriorityOrder(t *testing.T) {
	// Contains both an aggregation and action trigger; aggregation wins.
	msg := "list all my open items"
	if got := detectIntent(msg); got != IntentAggregation {
		t.Errorf("expected aggregation to win priority, got %q", got)
	}
}

func TestGetRelevantContextBasicRecall(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Storage", Content: "We decided to use Postgres for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Weather", Content: "It rained a lot yesterday in the office parking lot.",
		LineStart: 3, LineEnd: 4, ChunkType: store.TypeRaw,
	})

	cfg := config.Defaults()
	now := time.Now()
	res, err := GetRelevantContext(s, cfg, "what database did we pick for storage", Options{}, now)
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatalf("expected at least one chunk, got none")
	}
	if !strings.Contains(res.Chunks[0].Content, "Postgres") {
		t.Errorf("expected top chunk to be the Postgres decision, got %q", res.Chunks[0].Content)
	}
	if !strings.Contains(res.Text, "Recalled Context") {
		t.Errorf("expected rendered text to contain the output header, got %q", res.Text)
	}
}

func TestGetRelevantContextExcludesGlobMatchedFiles(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "transcripts/2026-01-01.md", store.NewChunk{
		Heading: "Datastore decision", Content: "We decided to use Postgres for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})

	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "tell me about the datastore decision", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) != 0 {
		t.Fatalf("expected excludeFromRecall glob to hide transcript chunk, got %d chunks", len(res.Chunks))
	}
}

func TestGetRelevantContextAttributionLiftsExclusion(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "transcripts/2026-01-01.md", store.NewChunk{
		Heading: "Raw chat", Entities: []string{"alice"},
		Content: "alice said we should use Postgres for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeRaw,
	})
	InvalidateEntityCache()

	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what did alice say about the database", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatalf("expected attribution query to surface the transcript chunk despite exclusion")
	}
}

func TestGetRelevantContextDropsBelowMinScore(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Unrelated", Content: "The cafeteria menu changed on Tuesday.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeRaw,
	})
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what is the meaning of life", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("expected no chunks for a query with no overlapping terms, got %d", len(res.Chunks))
	}
}

func TestGetRelevantContextAggregationWidensLimits(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 10; i++ {
		insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
			Heading: "Decision", Content: "We decided something important about the project roadmap.",
			LineStart: i + 1, LineEnd: i + 2, ChunkType: store.TypeDecision,
		})
	}
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "list all my decisions about the project roadmap", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) <= defaultMaxChunks {
		t.Errorf("expected aggregation intent to widen beyond the default max chunks, got %d", len(res.Chunks))
	}
}

func TestGetRelevantContextRulePenaltySuppressesHardRule(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Deploy policy", Content: "This is a non-negotiable hard rule: never deploy without approval.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeFact,
	})
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Deploy notes", Content: "Deploy approval usually takes about an hour to get from the team lead.",
		LineStart: 3, LineEnd: 4, ChunkType: store.TypeFact,
	})
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "tell me about deploy approval", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) < 2 {
		t.Fatalf("expected both candidates to be returned, got %d", len(res.Chunks))
	}
	if strings.Contains(res.Chunks[0].Content, "non-negotiable") {
		t.Errorf("expected rule-penalized chunk to rank below the plain fact, got it first: %q", res.Chunks[0].Content)
	}
}

func TestGetRelevantContextRulePenaltySkippedForRuleQuery(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Deploy policy", Content: "This is a non-negotiable hard rule: never deploy without approval.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeFact,
	})
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what is the deploy rule", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatalf("expected the rule chunk to be returned when explicitly asking about rules")
	}
}

func TestGetRelevantContextPriorityFileInjection(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/open-loops.md", store.NewChunk{
		Heading: "Open loop", Content: "Finish the quarterly report before Friday.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeActionItem,
	})
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what should I do next", Options{}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	found := false
	for _, c := range res.Chunks {
		if strings.Contains(c.FilePath, "open-loops.md") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected open-loops.md chunk to be injected for an action-intent query")
	}
}

func TestGetRelevantContextTokenBudgetTruncates(t *testing.T) {
	s := newTestStore(t)
	longContent := strings.Repeat("This is a long sentence about the roadmap decision. ", 200)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Roadmap", Content: longContent, LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})
	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what is the roadmap decision", Options{MaxTokens: 100}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if len(res.Chunks) == 0 {
		t.Fatalf("expected at least one chunk in the result")
	}
	if len(res.Chunks[0].Content) >= len(longContent) {
		t.Errorf("expected content to be truncated against the token budget, got %d chars", len(res.Chunks[0].Content))
	}
}

func TestGetRelevantContextFlagContradictions(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Storage", Content: "We use MySQL for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})
	newID := insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Storage", Content: "We no longer use MySQL, we switched to Postgres for the primary datastore.",
		LineStart: 3, LineEnd: 4, ChunkType: store.TypeDecision,
	})
	// The second insert re-created the first chunk under a new id.
	rows, err := s.GetChunksByFile("memory/MEMORY.md")
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 chunks in memory/MEMORY.md, got %d (err=%v)", len(rows), err)
	}
	oldID := rows[0].ID
	if _, err := s.InsertContradiction(oldID, newID, "storage backend changed"); err != nil {
		t.Fatalf("insert contradiction: %v", err)
	}

	cfg := config.Defaults()
	res, err := GetRelevantContext(s, cfg, "what datastore do we use", Options{FlagContradictions: true}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	if !strings.Contains(res.Text, "contradiction") {
		t.Errorf("expected contradiction annotation in rendered text, got %q", res.Text)
	}
}

func TestGetRelevantContextWritesRecallLog(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Storage", Content: "We decided to use Postgres for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})
	workspace := t.TempDir()
	cfg := config.Defaults()
	_, err := GetRelevantContext(s, cfg, "what database did we pick", Options{Workspace: workspace}, time.Now())
	if err != nil {
		t.Fatalf("GetRelevantContext: %v", err)
	}
	logPath := filepath.Join(workspace, ".memory", "recall-log.jsonl")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected recall log written, got error: %v", err)
	}
	if !strings.Contains(string(data), "\"query\"") {
		t.Errorf("expected recall log entry to contain a query field, got %q", string(data))
	}
}

func TestGetRelevantContextUnwritableWorkspaceDoesNotFail(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "Storage", Content: "We decided to use Postgres for the primary datastore.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeDecision,
	})
	cfg := config.Defaults()
	// A workspace path nested under a file (not a directory) cannot have
	// .memory created inside it; appendRecallLog must swallow that error.
	badParent := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(badParent, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err := GetRelevantContext(s, cfg, "what database did we pick", Options{Workspace: badParent}, time.Now())
	if err != nil {
		t.Fatalf("expected recall-log failure to be swallowed, got error: %v", err)
	}
}

func TestEntityCacheTTLAndInvalidate(t *testing.T) {
	s := newTestStore(t)
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "People", Entities: []string{"alice"}, Content: "alice is the lead on this project.",
		LineStart: 1, LineEnd: 2, ChunkType: store.TypeFact,
	})
	InvalidateEntityCache()

	now := time.Now()
	labels, err := sharedEntityCache.labelsAt(s, now)
	if err != nil {
		t.Fatalf("labelsAt: %v", err)
	}
	found := false
	for _, l := range labels {
		if l == "alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alice in entity labels, got %v", labels)
	}

	// Insert a second entity; within TTL the cache must still serve the
	// stale label set.
	insertChunk(t, s, "memory/MEMORY.md", store.NewChunk{
		Heading: "People", Entities: []string{"bob"}, Content: "bob joined the team recently.",
		LineStart: 3, LineEnd: 4, ChunkType: store.TypeFact,
	})
	stale, err := sharedEntityCache.labelsAt(s, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("labelsAt within ttl: %v", err)
	}
	for _, l := range stale {
		if l == "bob" {
			t.Fatalf("expected bob absent from still-cached labels within TTL, got %v", stale)
		}
	}

	refreshed, err := sharedEntityCache.labelsAt(s, now.Add(entityCacheTTL+time.Second))
	if err != nil {
		t.Fatalf("labelsAt after ttl: %v", err)
	}
	found = false
	for _, l := range refreshed {
		if l == "bob" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bob present after TTL expiry, got %v", refreshed)
	}
}

func TestRuleConfidence(t *testing.T) {
	tests := []struct {
		text string
		min  float64
	}{
		{"this is a non-negotiable rule", 0.9},
		{"our deployment policy and guidelines are strict, no exceptions", 0.7},
		{"just a policy mention", 0.4},
		{"nothing special here", 0},
	}
	for _, tc := range tests {
		got := ruleConfidence(tc.text)
		if tc.min == 0 {
			if got != 0 {
				t.Errorf("ruleConfidence(%q) = %v, want 0", tc.text, got)
			}
			continue
		}
		if got < tc.min {
			t.Errorf("ruleConfidence(%q) = %v, want at least %v", tc.text, got, tc.min)
		}
	}
}

func TestSkipRulePenalty(t *testing.T) {
	if !skipRulePenalty("what is our policy on deploys", IntentNone) {
		t.Errorf("expected explicit policy query to skip rule penalty")
	}
	if !skipRulePenalty("random message", IntentReasoning) {
		t.Errorf("expected reasoning intent to skip rule penalty")
	}
	if skipRulePenalty("random message", IntentNone) {
		t.Errorf("expected ordinary message/intent to not skip rule penalty")
	}
}

func TestTruncateAtBoundaryKeepsAtLeastHalf(t *testing.T) {
	content := strings.Repeat("word ", 100)
	out := truncateAtBoundary(content, 100)
	if len(out) < 50 {
		t.Errorf("expected truncation to keep at least half the budget, got %d chars", len(out))
	}
	if !strings.HasSuffix(out, "…") {
		t.Errorf("expected truncated content to end with an ellipsis, got %q", out)
	}
}

func TestTruncateAtBoundaryNoopWhenShort(t *testing.T) {
	content := "short content"
	if got := truncateAtBoundary(content, 1000); got != content {
		t.Errorf("expected no truncation for short content, got %q", got)
	}
}

func TestAgeLabel(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		created time.Time
		want    string
	}{
		{now, "today"},
		{now.AddDate(0, 0, -1), "yesterday"},
		{now.AddDate(0, 0, -3), "3d ago"},
		{now.AddDate(0, 0, -14), "2w ago"},
		{now.AddDate(0, -2, 0), "2mo ago"},
	}
	for _, tc := range tests {
		if got := ageLabel(tc.created, now); got != tc.want {
			t.Errorf("ageLabel(%v) = %q, want %q", tc.created, got, tc.want)
		}
	}
}

func TestConfidenceFlag(t *testing.T) {
	tests := []struct {
		conf float64
		want string
	}{
		{0.95, ""},
		{0.7, "⚠low-conf"},
		{0.3, "⚠⚠very-low-conf"},
	}
	for _, tc := range tests {
		if got := confidenceFlag(tc.conf); got != tc.want {
			t.Errorf("confidenceFlag(%v) = %q, want %q", tc.conf, got, tc.want)
		}
	}
}

func TestDedupeStrings(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b"}
	got := dedupeStrings(in)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupeStrings(%v) = %v, want %v", in, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dedupeStrings(%v)[%d] = %q, want %q", in, i, got[i], want[i])
		}
	}
}

func TestLastN(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	got := lastN(in, 2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("lastN(%v, 2) = %v, want [c d]", in, got)
	}
	if got := lastN(in, 10); len(got) != 4 {
		t.Errorf("lastN with n > len should return all items, got %v", got)
	}
}

func TestEntityIntersects(t *testing.T) {
	matched := map[string]bool{"alice": true}
	if !entityIntersects([]string{"@Alice"}, matched) {
		t.Errorf("expected @Alice to match alice case-insensitively")
	}
	if entityIntersects([]string{"bob"}, matched) {
		t.Errorf("expected bob to not match")
	}
}
