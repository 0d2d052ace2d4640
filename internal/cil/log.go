package cil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// logChunk is one per-chunk record in the recall-log.jsonl entry.
type logChunk struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Type    string  `json:"type"`
	Preview string  `json:"preview"`
}

// logEntry is one line of {workspace}/.memory/recall-log.jsonl (§4.6).
type logEntry struct {
	Timestamp string     `json:"timestamp"`
	Query     string     `json:"query"`
	Terms     []string   `json:"terms"`
	Returned  int        `json:"returned"`
	Dropped   int        `json:"dropped"`
	Excluded  int        `json:"excluded"`
	Tokens    int        `json:"tokenEstimate"`
	Chunks    []logChunk `json:"chunks"`
	DurationMs int64     `json:"durationMs"`
}

// appendRecallLog appends one JSONL record. Failures are swallowed: a
// disabled or unwritable log must never fail get_relevant_context (§4.6).
func appendRecallLog(workspace string, entry logEntry) {
	if workspace == "" {
		return
	}
	dir := filepath.Join(workspace, ".memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "recall-log.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	_, _ = f.Write(raw)
}

func truncateQuery(q string) string {
	if len(q) <= 200 {
		return q
	}
	return q[:200]
}

func nowStamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// logResult appends the recall-log.jsonl record for one get_relevant_context
// call. Never propagates failures (§4.6).
func logResult(workspace, query string, terms []string, returned, dropped, excluded, tokens int, chunks []candidateOutput, start, now time.Time) {
	logged := make([]logChunk, len(chunks))
	for i, c := range chunks {
		logged[i] = logChunk{Path: c.FilePath, Score: c.Score, Type: string(c.ChunkType), Preview: preview80(c.Content)}
	}
	appendRecallLog(workspace, logEntry{
		Timestamp:  nowStamp(now),
		Query:      truncateQuery(query),
		Terms:      terms,
		Returned:   returned,
		Dropped:    dropped,
		Excluded:   excluded,
		Tokens:     tokens,
		Chunks:     logged,
		DurationMs: now.Sub(start).Milliseconds(),
	})
}
