package store

import (
	"context"
	"fmt"
)

// Stats summarizes the current index state for `memoryctl stats`.
type Stats struct {
	TotalChunks     int
	TotalFiles      int
	StaleChunks     int
	ArchivedChunks  int
	ContradictionsOpen int
	ByType          map[string]int
	AvgConfidence   float64
}

// GetStats aggregates counts across chunks, files, archived_chunks and
// contradictions (§4.1).
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	st.ByType = map[string]int{}

	row := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM chunks")
	if err := row.Scan(&st.TotalChunks); err != nil {
		return st, fmt.Errorf("count chunks: %w", err)
	}

	row = s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM files")
	if err := row.Scan(&st.TotalFiles); err != nil {
		return st, fmt.Errorf("count files: %w", err)
	}

	row = s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM chunks WHERE stale = 1")
	if err := row.Scan(&st.StaleChunks); err != nil {
		return st, fmt.Errorf("count stale chunks: %w", err)
	}

	row = s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM archived_chunks")
	if err := row.Scan(&st.ArchivedChunks); err != nil {
		return st, fmt.Errorf("count archived chunks: %w", err)
	}

	row = s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM contradictions WHERE resolved = 0")
	if err := row.Scan(&st.ContradictionsOpen); err != nil {
		return st, fmt.Errorf("count open contradictions: %w", err)
	}

	if st.TotalChunks > 0 {
		row = s.db.QueryRowContext(context.Background(), "SELECT AVG(confidence) FROM chunks")
		if err := row.Scan(&st.AvgConfidence); err != nil {
			return st, fmt.Errorf("avg confidence: %w", err)
		}
	}

	rows, err := s.db.QueryContext(context.Background(), "SELECT chunk_type, COUNT(*) FROM chunks GROUP BY chunk_type")
	if err != nil {
		return st, fmt.Errorf("group by chunk_type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return st, fmt.Errorf("scan chunk_type group: %w", err)
		}
		st.ByType[t] = n
	}
	return st, rows.Err()
}
