package cil

import (
	"fmt"
	"regexp"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

var isoDatePathRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// buildContradictionLines renders the §4.6 "A vs B — reason" annotation
// lines for any contradiction whose old or new chunk id is among ids.
func buildContradictionLines(s *store.Store, ids []int64) ([]string, error) {
	rows, err := s.ContradictionsForIDs(ids)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, c := range rows {
		old, err := s.GetChunkByID(c.OldID)
		if err != nil || old == nil {
			continue
		}
		newer, err := s.GetChunkByID(c.NewID)
		if err != nil || newer == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%q vs %q (%s)", preview80(old.Content), preview80(newer.Content), c.Reason))
	}
	return lines, nil
}
