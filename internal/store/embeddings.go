package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding packs a float32 vector into little-endian bytes for the
// chunks.embedding BLOB column.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding unpacks a chunks.embedding BLOB back into a float32
// vector. Returns nil for an empty or malformed blob.
func DecodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// SetEmbedding writes a chunk's embedding vector. This touches only the
// embedding column, so it never fires the FTS mirror triggers.
func (s *Store) SetEmbedding(chunkID int64, vector []float32) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE chunks SET embedding = ? WHERE id = ?", EncodeEmbedding(vector), chunkID)
	if err != nil {
		return fmt.Errorf("set embedding for chunk %d: %w", chunkID, err)
	}
	return nil
}

// ChunksNeedingEmbedding returns up to limit non-stale chunks whose
// embedding is still NULL, for embed_all's batch loop (§4.9).
func (s *Store) ChunksNeedingEmbedding(limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale
		FROM chunks
		WHERE embedding IS NULL AND stale = 0
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query chunks needing embedding: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// EmbeddingStatus reports how many non-stale chunks have and lack
// embeddings, for embedding_status (§4.9).
type EmbeddingStatus struct {
	Embedded   int
	Unembedded int
}

func (s *Store) EmbeddingStatus() (EmbeddingStatus, error) {
	var st EmbeddingStatus
	row := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM chunks WHERE stale = 0 AND embedding IS NOT NULL")
	if err := row.Scan(&st.Embedded); err != nil {
		return st, fmt.Errorf("count embedded chunks: %w", err)
	}
	row = s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM chunks WHERE stale = 0 AND embedding IS NULL")
	if err := row.Scan(&st.Unembedded); err != nil {
		return st, fmt.Errorf("count unembedded chunks: %w", err)
	}
	return st, nil
}

// ChunkEmbedding loads a single chunk's raw embedding vector, or nil if
// unset.
func (s *Store) ChunkEmbedding(chunkID int64) ([]float32, error) {
	var blob []byte
	row := s.db.QueryRowContext(context.Background(), "SELECT embedding FROM chunks WHERE id = ?", chunkID)
	if err := row.Scan(&blob); err != nil {
		return nil, fmt.Errorf("scan embedding for chunk %d: %w", chunkID, err)
	}
	return DecodeEmbedding(blob), nil
}

// AllEmbeddedChunks returns every non-stale chunk carrying an embedding,
// for semantic rescue's linear scan (§4.6).
func (s *Store) AllEmbeddedChunks() ([]Chunk, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, file_path, heading, content, line_start, line_end, entities,
			chunk_type, confidence, created_at, indexed_at, file_weight,
			access_count, last_accessed, stale, embedding
		FROM chunks
		WHERE stale = 0 AND embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("query embedded chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var entitiesRaw, chunkType, createdAt, indexedAt string
		var lastAccessed *string
		var stale int
		var blob []byte
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Heading, &c.Content, &c.LineStart, &c.LineEnd, &entitiesRaw,
			&chunkType, &c.Confidence, &createdAt, &indexedAt, &c.FileWeight,
			&c.AccessCount, &lastAccessed, &stale, &blob); err != nil {
			return nil, fmt.Errorf("scan embedded chunk: %w", err)
		}
		c.Entities = decodeEntities(entitiesRaw)
		c.ChunkType = ChunkType(chunkType)
		c.Stale = stale != 0
		c.Embedding = DecodeEmbedding(blob)

		var err error
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if c.IndexedAt, err = parseTime(indexedAt); err != nil {
			return nil, fmt.Errorf("parse indexed_at: %w", err)
		}
		if lastAccessed != nil {
			t, err := parseTime(*lastAccessed)
			if err != nil {
				return nil, fmt.Errorf("parse last_accessed: %w", err)
			}
			c.LastAccessed = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
