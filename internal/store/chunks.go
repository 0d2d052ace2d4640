package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// fileWeight returns the baseline weight for a newly indexed path per §4.1.
// Config-level fileWeights override this at scoring time; this is only the
// value recorded at insert time.
func fileWeight(path string) float64 {
	base := strings.ToUpper(filepath.Base(path))
	base = strings.TrimSuffix(base, ".MD")
	switch base {
	case "MEMORY":
		return 1.5
	case "IDENTITY", "SOUL":
		return 1.4
	case "USER":
		return 1.3
	case "STATE":
		return 1.2
	case "TOOLS", "VOICE":
		return 1.1
	}

	lower := strings.ToLower(path)
	if strings.Contains(lower, "self-review") {
		return 0.8
	}
	for _, noisy := range []string{"scratch", "tmp", "archive", "logs"} {
		if strings.Contains(lower, noisy) {
			return 0.7
		}
	}
	return 1.0
}

// FileWeight exposes the baseline weight table for a path; Config applies
// its own fileWeights overrides on top of this at scoring time.
func FileWeight(path string) float64 {
	return fileWeight(path)
}

// GetFileMeta returns the stored file record, or nil if the path has never
// been indexed.
func (s *Store) GetFileMeta(path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT file_path, mtime_ms, chunk_count, indexed_at FROM files WHERE file_path = ?", path)

	var fr FileRecord
	var indexedAt string
	if err := row.Scan(&fr.FilePath, &fr.MTimeMs, &fr.ChunkCount, &indexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan file meta: %w", err)
	}
	t, err := parseTime(indexedAt)
	if err != nil {
		return nil, fmt.Errorf("parse indexed_at: %w", err)
	}
	fr.IndexedAt = t
	return &fr, nil
}

// GetAllFilePaths returns every path currently present in the files table.
func (s *Store) GetAllFilePaths() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT file_path FROM files")
	if err != nil {
		return nil, fmt.Errorf("query file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteFileChunks removes every chunk for path (and its file record).
// insert_chunks already wraps this in a transaction with the following
// insert; this standalone form is for orphan cleanup.
func (s *Store) DeleteFileChunks(path string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileChunksTx(tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileChunksTx(tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(context.Background(), "DELETE FROM chunks WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(context.Background(), "DELETE FROM files WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("delete file record for %s: %w", path, err)
	}
	return nil
}

// NewChunk is the input shape for a chunk awaiting insertion — everything
// the indexer has produced before a row id exists.
type NewChunk struct {
	Heading    string
	Content    string
	LineStart  int
	LineEnd    int
	Entities   []string
	ChunkType  ChunkType
	Confidence float64
	CreatedAt  time.Time
}

// InsertChunks replaces every prior chunk for path with chunks, then
// upserts the file record, all in one transaction (§4.1).
func (s *Store) InsertChunks(path string, mtimeMs int64, chunks []NewChunk) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileChunksTx(tx, path); err != nil {
		return err
	}

	weight := fileWeight(path)
	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(context.Background(), `
		INSERT INTO chunks (
			file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, 0, NULL)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert chunk: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		conf := c.Confidence
		if conf == 0 {
			conf = DefaultConfidence(c.ChunkType)
		}
		ct := c.ChunkType
		if ct == "" {
			ct = TypeRaw
		}
		_, err := stmt.ExecContext(context.Background(),
			path, c.Heading, c.Content, c.LineStart, c.LineEnd, encodeEntities(c.Entities),
			string(ct), conf, formatTime(createdAt), formatTime(now), weight,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if _, err := tx.ExecContext(context.Background(), `
		INSERT INTO files (file_path, mtime_ms, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			mtime_ms = excluded.mtime_ms,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at
	`, path, mtimeMs, len(chunks), formatTime(now)); err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}

	return tx.Commit()
}

// GetChunksByFile returns every chunk whose file_path contains pathSubstring,
// ordered by file_path then line_start.
func (s *Store) GetChunksByFile(pathSubstring string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE file_path LIKE '%' || ? || '%'
		ORDER BY file_path, line_start
	`, pathSubstring)
	if err != nil {
		return nil, fmt.Errorf("query chunks by file: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChunkRow(rows *sql.Rows) (Chunk, error) {
	var c Chunk
	var entitiesRaw, chunkType, createdAt, indexedAt string
	var lastAccessed sql.NullString
	var stale int
	if err := rows.Scan(
		&c.ID, &c.FilePath, &c.Heading, &c.Content, &c.LineStart, &c.LineEnd, &entitiesRaw,
		&chunkType, &c.Confidence, &createdAt, &indexedAt, &c.FileWeight,
		&c.AccessCount, &lastAccessed, &stale,
	); err != nil {
		return Chunk{}, fmt.Errorf("scan chunk row: %w", err)
	}

	c.Entities = decodeEntities(entitiesRaw)
	c.ChunkType = ChunkType(chunkType)
	c.Stale = stale != 0

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Chunk{}, fmt.Errorf("parse created_at: %w", err)
	}
	if c.IndexedAt, err = parseTime(indexedAt); err != nil {
		return Chunk{}, fmt.Errorf("parse indexed_at: %w", err)
	}
	if c.LastAccessed, err = scanTimePtr(lastAccessed); err != nil {
		return Chunk{}, fmt.Errorf("parse last_accessed: %w", err)
	}
	return c, nil
}

// GetAdjacentChunks loads every chunk for path ordered by line_start, finds
// the one whose span matches exactly, and returns up to n before and n after.
func (s *Store) GetAdjacentChunks(path string, lineStart, lineEnd, n int) ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE file_path = ?
		ORDER BY line_start
	`, path)
	if err != nil {
		return nil, fmt.Errorf("query chunks for adjacency: %w", err)
	}
	defer rows.Close()

	all, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, c := range all {
		if c.LineStart == lineStart && c.LineEnd == lineEnd {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}

	start := idx - n
	if start < 0 {
		start = 0
	}
	end := idx + n + 1
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}
