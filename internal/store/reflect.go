package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ChunksForDecay returns every chunk eligible for the decay pass:
// chunk_type != confirmed AND confidence > 0 (§4.7 step 1).
func (s *Store) ChunksForDecay() ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE chunk_type != ? AND confidence > 0
	`, string(TypeConfirmed))
	if err != nil {
		return nil, fmt.Errorf("query chunks for decay: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunksWithAccess returns every chunk with access_count > 0, for the
// reinforce pass (§4.7 step 2).
func (s *Store) ChunksWithAccess() ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE access_count > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("query chunks with access: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// NonStaleChunks returns every chunk with stale = 0, for the contradiction
// pass's heading grouping (§4.7 step 4) and for entity index rebuild.
func (s *Store) NonStaleChunks() ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE stale = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("query non-stale chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// AllChunksForPrune returns every stale chunk, candidates for the prune
// pass's eligibility check (§4.7 step 5).
func (s *Store) AllChunksForPrune() ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE stale = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query chunks for prune: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateConfidence writes a chunk's confidence in isolation. Does not
// touch content/heading/entities, so the FTS mirror is untouched.
func (s *Store) UpdateConfidence(chunkID int64, confidence float64) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE chunks SET confidence = ? WHERE id = ?", confidence, chunkID)
	if err != nil {
		return fmt.Errorf("update confidence for chunk %d: %w", chunkID, err)
	}
	return nil
}

// SetStale writes a chunk's stale flag in isolation.
func (s *Store) SetStale(chunkID int64, stale bool) error {
	v := 0
	if stale {
		v = 1
	}
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE chunks SET stale = ? WHERE id = ?", v, chunkID)
	if err != nil {
		return fmt.Errorf("update stale for chunk %d: %w", chunkID, err)
	}
	return nil
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back (applying no writes) on error or when dryRun is true.
// Reflect's passes each call this once so their mutations and reporting
// share a single transaction boundary per pass (§4.7).
func (s *Store) WithTx(dryRun bool, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return tx.Commit()
}

// Tx is a thin wrapper exposing the subset of write operations Reflect's
// passes need within a shared transaction.
type Tx struct {
	tx *sql.Tx
}

// UpdateConfidence within the shared transaction.
func (t *Tx) UpdateConfidence(chunkID int64, confidence float64) error {
	_, err := t.tx.ExecContext(context.Background(),
		"UPDATE chunks SET confidence = ? WHERE id = ?", confidence, chunkID)
	if err != nil {
		return fmt.Errorf("update confidence for chunk %d: %w", chunkID, err)
	}
	return nil
}

// SetStale within the shared transaction.
func (t *Tx) SetStale(chunkID int64, stale bool) error {
	v := 0
	if stale {
		v = 1
	}
	_, err := t.tx.ExecContext(context.Background(),
		"UPDATE chunks SET stale = ? WHERE id = ?", v, chunkID)
	if err != nil {
		return fmt.Errorf("update stale for chunk %d: %w", chunkID, err)
	}
	return nil
}

// InsertContradiction within the shared transaction; returns false if the
// pair was already recorded.
func (t *Tx) InsertContradiction(oldID, newID int64, reason string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := t.tx.ExecContext(context.Background(), `
		INSERT OR IGNORE INTO contradictions (chunk_id_old, chunk_id_new, reason, resolved, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, oldID, newID, reason, now)
	if err != nil {
		return false, fmt.Errorf("insert contradiction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ArchiveAndDelete copies a chunk into archived_chunks and deletes it
// within the shared transaction (the prune pass, §4.7 step 5).
func (t *Tx) ArchiveAndDelete(chunkID int64, reason string) error {
	row := t.tx.QueryRowContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed
		FROM chunks WHERE id = ?
	`, chunkID)

	var id, lineStart, lineEnd, accessCount int64
	var filePath, heading, content, entities, chunkType, createdAt, indexedAt string
	var confidence, weight float64
	var lastAccessed *string
	if err := row.Scan(&id, &filePath, &heading, &content, &lineStart, &lineEnd, &entities,
		&chunkType, &confidence, &createdAt, &indexedAt, &weight, &accessCount, &lastAccessed); err != nil {
		return fmt.Errorf("load chunk %d for archive: %w", chunkID, err)
	}

	now := formatTime(time.Now().UTC())
	if _, err := t.tx.ExecContext(context.Background(), `
		INSERT INTO archived_chunks (
			orig_chunk_id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, archived_at, archive_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, filePath, heading, content, lineStart, lineEnd, entities,
		chunkType, confidence, createdAt, indexedAt, weight,
		accessCount, lastAccessed, now, reason); err != nil {
		return fmt.Errorf("insert archived chunk: %w", err)
	}

	if _, err := t.tx.ExecContext(context.Background(), "DELETE FROM chunks WHERE id = ?", chunkID); err != nil {
		return fmt.Errorf("delete pruned chunk %d: %w", chunkID, err)
	}
	return nil
}

// NormalizeHeading lowercases and trims a heading for contradiction
// grouping (§4.7 step 4).
func NormalizeHeading(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

var genericHeadings = map[string]bool{
	"overview": true, "setup": true, "installation": true, "usage": true,
	"dependencies": true, "requirements": true, "getting started": true,
	"introduction": true, "summary": true, "notes": true, "context": true,
	"references": true, "links": true, "resources": true, "todo": true,
	"changelog": true, "configuration": true, "config": true,
	"what was done": true, "what i learned": true, "open questions": true,
	"files changed": true,
}

// IsGenericHeading reports whether a normalized heading is in the fixed
// generic-heading set excluded from contradiction grouping.
func IsGenericHeading(h string) bool {
	return genericHeadings[NormalizeHeading(h)]
}
