package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EntityRecord is a persisted row of entity_index, rebuilt wholesale by
// Reflect's entity-index-rebuild pass (§4.8).
type EntityRecord struct {
	Entity       string
	ChunkIDs     []int64
	CoEntities   map[string]int
	MentionCount int
	LastSeen     *time.Time
}

// ReplaceEntityIndex atomically replaces the entity_index table contents.
func (s *Store) ReplaceEntityIndex(records []EntityRecord) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(context.Background(), "DELETE FROM entity_index"); err != nil {
		return fmt.Errorf("clear entity_index: %w", err)
	}

	stmt, err := tx.PrepareContext(context.Background(), `
		INSERT INTO entity_index (entity, chunk_ids, co_entities, mention_count, last_seen)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		ids := make([]string, len(r.ChunkIDs))
		for i, id := range r.ChunkIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		coJSON, err := json.Marshal(r.CoEntities)
		if err != nil {
			return fmt.Errorf("marshal co-entities for %s: %w", r.Entity, err)
		}
		var lastSeen sql.NullString
		if r.LastSeen != nil {
			lastSeen = sql.NullString{String: formatTime(*r.LastSeen), Valid: true}
		}
		if _, err := stmt.ExecContext(context.Background(),
			r.Entity, strings.Join(ids, ","), string(coJSON), r.MentionCount, lastSeen); err != nil {
			return fmt.Errorf("insert entity %s: %w", r.Entity, err)
		}
	}

	return tx.Commit()
}

// GetEntity returns a single entity record, or nil if unknown.
func (s *Store) GetEntity(name string) (*EntityRecord, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT entity, chunk_ids, co_entities, mention_count, last_seen FROM entity_index WHERE entity = ?", name)
	return scanEntityRow(row)
}

func scanEntityRow(row *sql.Row) (*EntityRecord, error) {
	var r EntityRecord
	var chunkIDs, coJSON string
	var lastSeen sql.NullString
	if err := row.Scan(&r.Entity, &chunkIDs, &coJSON, &r.MentionCount, &lastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	if chunkIDs != "" {
		for _, p := range strings.Split(chunkIDs, ",") {
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				continue
			}
			r.ChunkIDs = append(r.ChunkIDs, id)
		}
	}
	r.CoEntities = map[string]int{}
	if coJSON != "" {
		if err := json.Unmarshal([]byte(coJSON), &r.CoEntities); err != nil {
			return nil, fmt.Errorf("unmarshal co-entities: %w", err)
		}
	}
	if lastSeen.Valid {
		t, err := parseTime(lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_seen: %w", err)
		}
		r.LastSeen = &t
	}
	return &r, nil
}

// GetRelatedEntities returns entities that co-occurred with name, sorted
// by co-occurrence count descending.
func (s *Store) GetRelatedEntities(name string) ([]string, error) {
	rec, err := s.GetEntity(name)
	if err != nil || rec == nil {
		return nil, err
	}
	type pair struct {
		name  string
		count int
	}
	pairs := make([]pair, 0, len(rec.CoEntities))
	for e, c := range rec.CoEntities {
		pairs = append(pairs, pair{e, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].name < pairs[j].name
	})
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.name
	}
	return out, nil
}

// ListEntities returns up to limit entity records ordered by mention_count
// descending.
func (s *Store) ListEntities(limit int) ([]EntityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT entity, chunk_ids, co_entities, mention_count, last_seen
		FROM entity_index
		ORDER BY mention_count DESC, entity ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entity_index: %w", err)
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		var r EntityRecord
		var chunkIDs, coJSON string
		var lastSeen sql.NullString
		if err := rows.Scan(&r.Entity, &chunkIDs, &coJSON, &r.MentionCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		if chunkIDs != "" {
			for _, p := range strings.Split(chunkIDs, ",") {
				id, err := strconv.ParseInt(p, 10, 64)
				if err != nil {
					continue
				}
				r.ChunkIDs = append(r.ChunkIDs, id)
			}
		}
		r.CoEntities = map[string]int{}
		if coJSON != "" {
			if err := json.Unmarshal([]byte(coJSON), &r.CoEntities); err != nil {
				return nil, fmt.Errorf("unmarshal co-entities: %w", err)
			}
		}
		if lastSeen.Valid {
			t, err := parseTime(lastSeen.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_seen: %w", err)
			}
			r.LastSeen = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DistinctEntityLabels scans every non-empty entities column and returns
// the set of distinct, lowercased, @-stripped labels — the raw material
// for CIL's process-wide entity cache (§4.6).
func (s *Store) DistinctEntityLabels() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT DISTINCT entities FROM chunks WHERE entities != ''")
	if err != nil {
		return nil, fmt.Errorf("query distinct entities: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var out []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan entities column: %w", err)
		}
		for _, e := range decodeEntities(raw) {
			label := strings.ToLower(strings.TrimPrefix(e, "@"))
			if label == "" || len(label) < 2 || seen[label] {
				continue
			}
			seen[label] = true
			out = append(out, label)
		}
	}
	return out, rows.Err()
}
