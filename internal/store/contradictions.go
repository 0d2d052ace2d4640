package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertContradiction records a flagged pair if it is not already present
// (unique on old/new id pair). Returns false if it already existed.
func (s *Store) InsertContradiction(oldID, newID int64, reason string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(context.Background(), `
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

// ListContradictions returns contradiction rows, optionally filtered to
// unresolved-only.
func (s *Store) ListContradictions(unresolvedOnly bool) ([]Contradiction, error) {
	query := "SELECT id, chunk_id_old, chunk_id_new, reason, resolved, created_at FROM contradictions"
	if unresolvedOnly {
		query += " WHERE resolved = 0"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("query contradictions: %w", err)
	}
	defer rows.Close()

	var out []Contradiction
	for rows.Next() {
		var c Contradiction
		var resolved int
		var createdAt string
		if err := rows.Scan(&c.ID, &c.OldID, &c.NewID, &c.Reason, &resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contradiction: %w", err)
		}
		c.Resolved = resolved != 0
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		c.CreatedAt = t
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContradictionsForIDs returns contradiction rows whose old or new id
// appears in ids, used for CIL's result-set contradiction annotation.
func (s *Store) ContradictionsForIDs(ids []int64) ([]Contradiction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	all, err := s.ListContradictions(false)
	if err != nil {
		return nil, err
	}
	var out []Contradiction
	for _, c := range all {
		if set[c.OldID] || set[c.NewID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolveContradiction sets resolved=1 and, for keep-newer/keep-older,
// demotes the loser to type outdated with confidence 0.3 (§4.7).
func (s *Store) ResolveContradiction(id int64, action string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldID, newID int64
	row := tx.QueryRowContext(context.Background(),
		"SELECT chunk_id_old, chunk_id_new FROM contradictions WHERE id = ?", id)
	if err := row.Scan(&oldID, &newID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("contradiction %d not found", id)
		}
		return fmt.Errorf("scan contradiction: %w", err)
	}

	var loser int64
	switch action {
	case "keep-newer":
		loser = oldID
	case "keep-older":
		loser = newID
	case "keep-both", "dismiss":
		loser = 0
	default:
		return fmt.Errorf("unknown resolution action %q", action)
	}

	if loser != 0 {
		if _, err := tx.ExecContext(context.Background(),
			"UPDATE chunks SET chunk_type = ?, confidence = 0.3 WHERE id = ?",
			string(TypeOutdated), loser); err != nil {
			return fmt.Errorf("demote loser chunk %d: %w", loser, err)
		}
	}

	if _, err := tx.ExecContext(context.Background(),
		"UPDATE contradictions SET resolved = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark contradiction resolved: %w", err)
	}

	return tx.Commit()
}
