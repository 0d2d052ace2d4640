// Package recall implements the precision-search surface, recall(query,
// opts), per §4.5: since parsing, AND-then-OR-fallback FTS, exclusion
// filtering, RECALL-profile scoring, and adjacent-chunk context windows.
package recall

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/scoring"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
	"github.com/mehmetkoksal-w/memoryindex/internal/textutil"
)

// Options controls a single recall() call (§4.5).
type Options struct {
	Since         string // absolute YYYY-MM-DD or relative Nd|Nw|Nm|Ny
	ChunkType     store.ChunkType
	MinConfidence float64
	Limit         int
	Context       int // ±N adjacent chunks attached per result
	IncludeStale  bool
}

// Result is one recalled chunk plus its adjacent-context window.
type Result struct {
	scoring.RankedResult
	Context []store.Chunk
}

var relativeSinceRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

// parseSince resolves an absolute YYYY-MM-DD date or a relative Nd|Nw|Nm|Ny
// offset from now into a timestamp (§4.5).
func parseSince(raw string, now time.Time) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		return &t
	}
	m := relativeSinceRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var t time.Time
	switch m[2] {
	case "d":
		t = now.AddDate(0, 0, -n)
	case "w":
		t = now.AddDate(0, 0, -7*n)
	case "m":
		t = now.AddDate(0, -n, 0)
	case "y":
		t = now.AddDate(-n, 0, 0)
	}
	return &t
}

// Recall implements recall(query, opts) (§4.5).
func Recall(s *store.Store, cfg config.Config, query string, opts Options, now time.Time) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	since := parseSince(opts.Since, now)
	searchOpts := store.SearchOptions{
		IncludeStale:  opts.IncludeStale,
		Since:         since,
		ChunkType:     opts.ChunkType,
		MinConfidence: opts.MinConfidence,
		Limit:         limit * 5,
	}

	andQuery := textutil.SanitizeFTSQuery(query)
	if andQuery == "" {
		return nil, nil
	}

	rows, err := s.Search(andQuery, searchOpts)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		terms := textutil.SignificantTerms(query)
		orQuery := textutil.BuildORQuery(terms, cfg.Aliases)
		if orQuery == "" {
			return nil, nil
		}
		rows, err = s.Search(orQuery, searchOpts)
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	excluded := cfg.EffectiveExclusion(false)
	ranked := make([]*scoring.RankedResult, 0, len(rows))
	for _, r := range rows {
		if config.MatchGlobs(r.FilePath, excluded) {
			continue
		}
		rr := &scoring.RankedResult{Chunk: r.Chunk, RawRank: r.Rank}
		ranked = append(ranked, rr)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	scoring.NormalizeFTSScores(ranked)

	for _, rr := range ranked {
		weight, ok := cfg.ResolveFileWeight(rr.FilePath)
		ov := scoring.Overrides{NormalizedFTS: rr.NormalizedFTS}
		if ok {
			ov.FileWeight = weight
		}
		rr.Score = scoring.Score(rr.Chunk, now, scoring.RECALL, ov)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]Result, len(ranked))
	for i, rr := range ranked {
		res := Result{RankedResult: *rr}
		if opts.Context > 0 {
			ctx, err := s.GetAdjacentChunks(rr.FilePath, rr.LineStart, rr.LineEnd, opts.Context)
			if err == nil {
				res.Context = ctx
			}
		}
		results[i] = res
	}
	return results, nil
}
