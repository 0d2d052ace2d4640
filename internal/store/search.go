package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SearchOptions controls store.Search filtering per §4.1. Query is an
// already-sanitized FTS5 MATCH expression — callers (Recall/CIL) own
// sanitization so Store stays a thin, testable query layer.
type SearchOptions struct {
	IncludeStale bool
	Since        *time.Time
	Until        *time.Time
	ChunkType    ChunkType
	MinConfidence float64
	Limit        int
	SkipTracking bool
}

// SearchResult pairs a chunk with its raw FTS rank (more negative = better).
type SearchResult struct {
	Chunk
	Rank float64
}

// Search runs an FTS5 MATCH with the given filters, ordered by rank
// ascending (best first). A malformed FTS query string is a caller error:
// Store returns an empty result set, not an error, per §4.1.
func (s *Store) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	conds := []string{"chunks_fts MATCH ?"}
	args := []any{query}

	if !opts.IncludeStale {
		conds = append(conds, "c.stale = 0")
	}
	if opts.Since != nil {
		conds = append(conds, "c.created_at >= ?")
		args = append(args, formatTime(*opts.Since))
	}
	if opts.Until != nil {
		conds = append(conds, "c.created_at < ?")
		args = append(args, formatTime(*opts.Until))
	}
	if opts.ChunkType != "" {
		conds = append(conds, "c.chunk_type = ?")
		args = append(args, string(opts.ChunkType))
	}
	if opts.MinConfidence > 0 {
		conds = append(conds, "c.confidence >= ?")
		args = append(args, opts.MinConfidence)
	}

	stmt := fmt.Sprintf(`
		SELECT c.id, c.file_path, c.heading, c.content, c.line_start, c.line_end, c.entities,
			c.chunk_type, c.confidence, c.created_at, c.indexed_at, c.file_weight,
			c.access_count, c.last_accessed, c.stale, chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE %s
		ORDER BY chunks_fts.rank ASC
		LIMIT ?
	`, strings.Join(conds, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(context.Background(), stmt, args...)
	if err != nil {
		// SQLite reports a malformed MATCH expression as a query error;
		// callers treat this identically to a zero-row result.
		return nil, nil
	}
	defer rows.Close()

	var results []SearchResult
	var ids []int64
	for rows.Next() {
		var r SearchResult
		var entitiesRaw, chunkType, createdAt, indexedAt string
		var lastAccessed sql.NullString
		var stale int
		if err := rows.Scan(
			&r.ID, &r.FilePath, &r.Heading, &r.Content, &r.LineStart, &r.LineEnd, &entitiesRaw,
			&chunkType, &r.Confidence, &createdAt, &indexedAt, &r.FileWeight,
			&r.AccessCount, &lastAccessed, &stale, &r.Rank,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Entities = decodeEntities(entitiesRaw)
		r.ChunkType = ChunkType(chunkType)
		r.Stale = stale != 0
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if r.IndexedAt, err = parseTime(indexedAt); err != nil {
			return nil, fmt.Errorf("parse indexed_at: %w", err)
		}
		if r.LastAccessed, err = scanTimePtr(lastAccessed); err != nil {
			return nil, fmt.Errorf("parse last_accessed: %w", err)
		}
		results = append(results, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	if !opts.SkipTracking && len(ids) > 0 {
		accessed := time.Now().UTC()
		if err := s.trackAccess(ids, accessed); err != nil {
			return nil, fmt.Errorf("track access: %w", err)
		}
		for i := range results {
			results[i].AccessCount++
			results[i].LastAccessed = &accessed
		}
	}

	return results, nil
}

// trackAccess bumps access_count and last_accessed for every id in one
// transaction. This does not touch content/heading/entities so it never
// triggers the FTS mirror triggers.
func (s *Store) trackAccess(ids []int64, at time.Time) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(at)
	stmt, err := tx.PrepareContext(context.Background(),
		"UPDATE chunks SET access_count = access_count + 1, last_accessed = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare access update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(context.Background(), now, id); err != nil {
			return fmt.Errorf("update access for chunk %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetChunkByID fetches a single chunk by primary key.
func (s *Store) GetChunkByID(id int64) (*Chunk, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks WHERE id = ?
	`, id)

	var c Chunk
	var entitiesRaw, chunkType, createdAt, indexedAt string
	var lastAccessed sql.NullString
	var stale int
	if err := row.Scan(
		&c.ID, &c.FilePath, &c.Heading, &c.Content, &c.LineStart, &c.LineEnd, &entitiesRaw,
		&chunkType, &c.Confidence, &createdAt, &indexedAt, &c.FileWeight,
		&c.AccessCount, &lastAccessed, &stale,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.Entities = decodeEntities(entitiesRaw)
	c.ChunkType = ChunkType(chunkType)
	c.Stale = stale != 0

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.IndexedAt, err = parseTime(indexedAt); err != nil {
		return nil, fmt.Errorf("parse indexed_at: %w", err)
	}
	if c.LastAccessed, err = scanTimePtr(lastAccessed); err != nil {
		return nil, fmt.Errorf("parse last_accessed: %w", err)
	}
	return &c, nil
}
