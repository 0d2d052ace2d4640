package store

import (
	"context"
	"fmt"
	"time"
)

// Archive copies a chunk's full persisted state into archived_chunks and
// deletes the original row, in one transaction. Callers (Reflect's prune
// pass) decide which chunks qualify; Archive itself does not re-check
// eligibility.
func (s *Store) Archive(chunkID int64, reason string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(context.Background(), `
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
	if _, err := tx.ExecContext(context.Background(), `
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

	if _, err := tx.ExecContext(context.Background(), "DELETE FROM chunks WHERE id = ?", chunkID); err != nil {
		return fmt.Errorf("delete archived chunk %d: %w", chunkID, err)
	}

	return tx.Commit()
}

// Restore reinserts an archived chunk as a new, non-stale chunk row (new
// id) and removes the archive row (§4.7).
func (s *Store) Restore(archiveID int64) (int64, error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(context.Background(), `
		SELECT file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, file_weight, access_count, last_accessed
		FROM archived_chunks WHERE id = ?
	`, archiveID)

	var filePath, heading, content, entities, chunkType, createdAt string
	var lineStart, lineEnd, accessCount int64
	var confidence, weight float64
	var lastAccessed *string
	if err := row.Scan(&filePath, &heading, &content, &lineStart, &lineEnd, &entities,
		&chunkType, &confidence, &createdAt, &weight, &accessCount, &lastAccessed); err != nil {
		return 0, fmt.Errorf("load archived chunk %d: %w", archiveID, err)
	}

	now := formatTime(time.Now().UTC())
	res, err := tx.ExecContext(context.Background(), `
		INSERT INTO chunks (
			file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`, filePath, heading, content, lineStart, lineEnd, entities,
		chunkType, confidence, createdAt, now, weight, accessCount, lastAccessed)
	if err != nil {
		return 0, fmt.Errorf("reinsert restored chunk: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get restored chunk id: %w", err)
	}

	if _, err := tx.ExecContext(context.Background(), "DELETE FROM archived_chunks WHERE id = ?", archiveID); err != nil {
		return 0, fmt.Errorf("delete archive row %d: %w", archiveID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newID, nil
}

// ListArchived returns every archived chunk, most recently archived first.
func (s *Store) ListArchived() ([]ArchivedChunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, orig_chunk_id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, archived_at, archive_reason
		FROM archived_chunks
		ORDER BY archived_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query archived chunks: %w", err)
	}
	defer rows.Close()

	var out []ArchivedChunk
	for rows.Next() {
		var a ArchivedChunk
		var entitiesRaw, chunkType, createdAt, indexedAt, archivedAt string
		var lastAccessed *string
		if err := rows.Scan(&a.ID, &a.OrigChunkID, &a.FilePath, &a.Heading, &a.Content, &a.LineStart, &a.LineEnd,
			&entitiesRaw, &chunkType, &a.Confidence, &createdAt, &indexedAt, &a.FileWeight,
			&a.AccessCount, &lastAccessed, &archivedAt, &a.ArchiveReason); err != nil {
			return nil, fmt.Errorf("scan archived chunk: %w", err)
		}
		a.Entities = decodeEntities(entitiesRaw)
		a.ChunkType = ChunkType(chunkType)

		var err error
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if a.IndexedAt, err = parseTime(indexedAt); err != nil {
			return nil, fmt.Errorf("parse indexed_at: %w", err)
		}
		if a.ArchivedAt, err = parseTime(archivedAt); err != nil {
			return nil, fmt.Errorf("parse archived_at: %w", err)
		}
		if lastAccessed != nil {
			t, err := parseTime(*lastAccessed)
			if err != nil {
				return nil, fmt.Errorf("parse last_accessed: %w", err)
			}
			a.LastAccessed = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
