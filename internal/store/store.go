// Package store owns the SQLite-backed persistence layer for the memory
// index: the chunks table, its FTS5 mirror, file records, contradictions,
// archived chunks and the entity index. Every other package holds only
// transient query results; store is the sole writer of persisted rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the SQLite database for a single workspace.
type Store struct {
	db   *sql.DB
	root string
}

// ChunkType is a closed enum of chunk classifications. The zero value is Raw.
type ChunkType string

const (
	TypeRaw        ChunkType = "raw"
	TypeFact       ChunkType = "fact"
	TypeDecision   ChunkType = "decision"
	TypePreference ChunkType = "preference"
	TypeConfirmed  ChunkType = "confirmed"
	TypeOpinion    ChunkType = "opinion"
	TypeInferred   ChunkType = "inferred"
	TypeOutdated   ChunkType = "outdated"
	TypeActionItem ChunkType = "action_item"
)

// DefaultConfidence returns the canonical confidence for a chunk type per §6.
func DefaultConfidence(t ChunkType) float64 {
	switch t {
	case TypeFact, TypeDecision, TypePreference, TypeConfirmed, TypeRaw:
		return 1.0
	case TypeOpinion:
		return 0.8
	case TypeInferred:
		return 0.7
	case TypeOutdated:
		return 0.3
	case TypeActionItem:
		return 0.85
	default:
		return 1.0
	}
}

// Chunk is the unit of retrieval, as defined in §3.
type Chunk struct {
	ID            int64
	FilePath      string
	Heading       string
	Content       string
	LineStart     int
	LineEnd       int
	Entities      []string
	ChunkType     ChunkType
	Confidence    float64
	CreatedAt     time.Time
	IndexedAt     time.Time
	FileWeight    float64
	AccessCount   int
	LastAccessed  *time.Time
	Stale         bool
	Embedding     []float32
}

// FileRecord tracks the last indexed state of a workspace file.
type FileRecord struct {
	FilePath   string
	MTimeMs    int64
	ChunkCount int
	IndexedAt  time.Time
}

// Contradiction is a flagged pair of chunks sharing a heading with a likely
// negation between them (§3).
type Contradiction struct {
	ID        int64
	OldID     int64
	NewID     int64
	Reason    string
	Resolved  bool
	CreatedAt time.Time
}

// ArchivedChunk is a full snapshot of a pruned chunk (§3). ID is the
// archive row's own primary key; OrigChunkID is the chunk id it was
// archived from (no longer present in the chunks table).
type ArchivedChunk struct {
	Chunk
	OrigChunkID   int64
	ArchivedAt    time.Time
	ArchiveReason string
}

// Open opens (creating if necessary) the SQLite database at
// {workspace}/.memory/index.sqlite, enabling WAL mode, and runs any
// pending schema migrations.
func Open(workspace string) (*Store, error) {
	dir := filepath.Join(workspace, ".memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create .memory dir: %w", err)
	}

	dbPath := filepath.Join(dir, "index.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(context.Background(), p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, root: workspace}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle for callers that need raw
// access. Reflect's passes use WithTx rather than this handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Root returns the workspace root this store was opened against.
func (s *Store) Root() string {
	return s.root
}

func scanTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
