// Package cil implements get_relevant_context, the Context Intelligence
// Layer that composes temporal resolution, entity matching, dual-query FTS
// with semantic rescue, composite scoring, rule penalties, priority-file
// injection, and token-budgeted Markdown rendering (§4.6).
package cil

import (
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/embeddings"
	"github.com/mehmetkoksal-w/memoryindex/internal/scoring"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
	"github.com/mehmetkoksal-w/memoryindex/internal/temporal"
	"github.com/mehmetkoksal-w/memoryindex/internal/textutil"
)

const (
	defaultMaxChunks = 6
	defaultMinScore  = 0.15
)

var priorityPatterns = []struct {
	Substr     string
	Limit      int
	ScoreFloor float64
}{
	{Substr: "memory/open-loops.md", Limit: 3, ScoreFloor: 0.55},
	{Substr: "self-review", Limit: 2, ScoreFloor: 0.50},
}

// Options controls a single get_relevant_context call (§4.6).
type Options struct {
	ConversationContext []string
	QueryEmbedding      []float32
	FlagContradictions  bool
	MaxTokens           int
	Workspace           string
}

// Result is get_relevant_context's return shape.
type Result struct {
	Text          string
	Chunks        []candidateOutput
	TokenEstimate int
}

// GetRelevantContext implements get_relevant_context(message, opts) (§4.6).
func GetRelevantContext(s *store.Store, cfg config.Config, message string, opts Options, now time.Time) (Result, error) {
	start := now

	stripped := stripEnvelope(message)
	intent := detectIntent(stripped)
	ip := paramsFor(intent)

	maxChunks := defaultMaxChunks
	if ip.MaxChunks > 0 {
		maxChunks = ip.MaxChunks
	}
	minScore := defaultMinScore
	if ip.MaxChunks > 0 { // aggregation is the only category that sets both
		minScore = ip.MinScore
	}

	tr := temporal.Resolve(stripped, now)
	if len(tr.DateTerms) > 0 {
		minScore = 0.05
		if maxChunks < 8 {
			maxChunks = 8
		}
	}
	strippedQuery := tr.StrippedQuery
	if strippedQuery == "" {
		strippedQuery = stripped
	}

	terms := textutil.SignificantTerms(strippedQuery)
	terms = append(terms, textutil.CapitalizedSpans(message)...)
	for _, ctxMsg := range lastN(opts.ConversationContext, 3) {
		terms = append(terms, textutil.SignificantTerms(ctxMsg)...)
	}
	terms = append(terms, tr.DateTerms...)
	if intent == IntentAction {
		terms = append(terms, ip.SyntheticTerms...)
	}
	terms = dedupeStrings(terms)

	labels, _ := sharedEntityCache.labelsAt(s, now)
	haystack := message + " " + strings.Join(opts.ConversationContext, " ")
	matchedEntitySet, err := matchedEntities(s, labels, haystack)
	if err != nil {
		matchedEntitySet = map[string]bool{}
	}

	isAttribution, _ := temporal.IsAttributionQuery(message, labels)
	excluded := cfg.EffectiveExclusion(isAttribution)

	fetchLimit := maxChunks * 5
	candidates := map[int64]*scoring.RankedResult{}
	excludedCount := 0

	addRows := func(rows []store.SearchResult, andMatch bool) {
		for _, r := range rows {
			if config.MatchGlobs(r.FilePath, excluded) {
				excludedCount++
				continue
			}
			if existing, ok := candidates[r.ID]; ok {
				if andMatch {
					existing.AndMatch = true
				}
				continue
			}
			candidates[r.ID] = &scoring.RankedResult{Chunk: r.Chunk, RawRank: r.Rank, AndMatch: andMatch}
		}
	}

	searchOpts := store.SearchOptions{Limit: fetchLimit}
	if tr.Since != nil {
		searchOpts.Since = tr.Since
	}
	if tr.Until != nil {
		searchOpts.Until = tr.Until
	}

	andQuery := textutil.SanitizeFTSQuery(strippedQuery)
	if andQuery != "" {
		rows, err := s.Search(andQuery, searchOpts)
		if err != nil {
			return Result{}, err
		}
		addRows(rows, true)
	}

	if len(tr.DateTerms) > 0 {
		dateQuery := quotedOR(tr.DateTerms)
		rows, err := s.Search(dateQuery, searchOpts)
		if err != nil {
			return Result{}, err
		}
		addRows(rows, false)
	}

	orQuery := textutil.BuildORQuery(terms, cfg.Aliases)
	if orQuery != "" {
		rows, err := s.Search(orQuery, searchOpts)
		if err != nil {
			return Result{}, err
		}
		addRows(rows, false)
	}

	if tr.ForwardLooking && tr.Until != nil && tr.Until.After(now) {
		recentSince := now.AddDate(0, 0, -14)
		rescueOpts := store.SearchOptions{Limit: fetchLimit, Since: &recentSince}
		if orQuery != "" {
			rows, err := s.Search(orQuery, rescueOpts)
			if err == nil {
				addRows(rows, false)
			}
		}
		if len(tr.ForwardTerms) > 0 {
			fwQuery := textutil.BuildORQuery(tr.ForwardTerms, cfg.Aliases)
			if fwQuery != "" {
				rows, err := s.Search(fwQuery, rescueOpts)
				if err == nil {
					addRows(rows, false)
				}
			}
		}
	}

	ranked := make([]*scoring.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}

	scoring.NormalizeFTSScores(ranked)

	profile := scoring.CIL
	if len(opts.QueryEmbedding) > 0 {
		profile = scoring.CILSemantic
		applySemanticScoring(s, ranked, opts.QueryEmbedding)

		existing := make(map[int64]bool, len(ranked))
		for _, r := range ranked {
			existing[r.ID] = true
		}
		rescued, err := semanticRescue(s, opts.QueryEmbedding, existing, excluded, tr, maxChunks)
		if err == nil {
			ranked = append(ranked, rescued...)
		}
	}

	halfLife := tr.RecencyBoost
	if halfLife <= 0 {
		halfLife = 30
	}

	for _, r := range ranked {
		r.EntityMatch = entityIntersects(r.Entities, matchedEntitySet)
		weight, ok := cfg.ResolveFileWeight(r.FilePath)
		ov := scoring.Overrides{
			NormalizedFTS: r.NormalizedFTS,
			SemanticSim:   r.SemanticSim,
			EntityMatch:   r.EntityMatch,
			HalfLifeDays:  halfLife,
		}
		if ok {
			ov.FileWeight = weight
		}
		r.Score = scoring.Score(r.Chunk, now, profile, ov)

		r.Score *= temporalMultiplier(r.Chunk, tr, now)

		if boost, ok := ip.TypeBoosts[r.ChunkType]; ok {
			r.Score *= 1 + boost
		}

		ruleConf := ruleConfidence(strings.ToLower(r.Content + " " + r.Heading))
		r.RulePenalty = ruleConf
		if ruleConf > 0 && !skipRulePenalty(message, intent) {
			r.Score *= 1 - 0.4*ruleConf
		}

		if r.AndMatch {
			r.Score *= 1.3
		}
	}

	if intent == IntentAction {
		ranked, err = injectPriorityFiles(s, ranked, excluded, now)
		if err != nil {
			return Result{}, err
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	dropped := 0
	var kept []*scoring.RankedResult
	for _, r := range ranked {
		if r.Score < minScore {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > maxChunks {
		dropped += len(kept) - maxChunks
		kept = kept[:maxChunks]
	}

	outputs := make([]candidateOutput, len(kept))
	ids := make([]int64, len(kept))
	for i, r := range kept {
		outputs[i] = candidateOutput{
			ID: r.ID, Content: r.Content, FilePath: r.FilePath,
			LineStart: r.LineStart, LineEnd: r.LineEnd, Heading: r.Heading,
			Confidence: r.Confidence, ChunkType: r.ChunkType, Entities: r.Entities,
			CreatedAt: r.CreatedAt, Score: r.Score,
		}
		ids[i] = r.ID
	}

	var contradictionLines []string
	if opts.FlagContradictions && len(outputs) >= 2 {
		contradictionLines, err = buildContradictionLines(s, ids)
		if err != nil {
			contradictionLines = nil
		}
	}

	text, tokens, finalOutputs := renderOutput(outputs, now, contradictionLines, opts.MaxTokens)

	logResult(opts.Workspace, message, terms, len(finalOutputs), dropped, excludedCount, tokens, finalOutputs, start, now)

	return Result{Text: text, Chunks: finalOutputs, TokenEstimate: tokens}, nil
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func quotedOR(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

func entityIntersects(chunkEntities []string, matched map[string]bool) bool {
	for _, e := range chunkEntities {
		label := strings.ToLower(strings.TrimPrefix(e, "@"))
		if matched[label] {
			return true
		}
	}
	return false
}

func applySemanticScoring(s *store.Store, ranked []*scoring.RankedResult, queryEmb []float32) {
	for _, r := range ranked {
		vec, err := s.ChunkEmbedding(r.ID)
		if err != nil || vec == nil {
			continue
		}
		r.SemanticSim = embeddings.CosineSimilarity(queryEmb, vec)
	}
}

const semanticRescueThreshold = 0.25

func semanticRescue(s *store.Store, queryEmb []float32, existing map[int64]bool, excluded []string, tr temporal.Result, maxChunks int) ([]*scoring.RankedResult, error) {
	all, err := s.AllEmbeddedChunks()
	if err != nil {
		return nil, err
	}

	type scored struct {
		chunk store.Chunk
		sim   float64
	}
	var candidates []scored
	for _, c := range all {
		if existing[c.ID] || config.MatchGlobs(c.FilePath, excluded) {
			continue
		}
		if tr.Since != nil && c.CreatedAt.Before(*tr.Since) {
			continue
		}
		if tr.Until != nil && !c.CreatedAt.Before(*tr.Until) {
			continue
		}
		sim := embeddings.CosineSimilarity(queryEmb, c.Embedding)
		if sim < semanticRescueThreshold {
			continue
		}
		candidates = append(candidates, scored{chunk: c, sim: sim})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if len(candidates) > maxChunks {
		candidates = candidates[:maxChunks]
	}

	out := make([]*scoring.RankedResult, len(candidates))
	for i, c := range candidates {
		out[i] = &scoring.RankedResult{
			Chunk:         c.chunk,
			SemanticSim:   c.sim,
			NormalizedFTS: c.sim * 0.3,
		}
	}
	return out, nil
}

func temporalMultiplier(c store.Chunk, tr temporal.Result, now time.Time) float64 {
	pathDate := isoDateInPath(c.FilePath)
	mult := 1.0
	for _, dt := range tr.DateTerms {
		if pathDate == dt {
			return 1.8
		}
	}
	if pathDate != "" && tr.Since != nil {
		if parsed, err := time.ParseInLocation("2006-01-02", pathDate, now.Location()); err == nil {
			until := tr.Until
			if until == nil {
				t := now.AddDate(100, 0, 0)
				until = &t
			}
			if !parsed.Before(*tr.Since) && parsed.Before(*until) {
				mult = 1.3
			}
		}
	}
	createdDate := c.CreatedAt.Format("2006-01-02")
	for _, dt := range tr.DateTerms {
		if createdDate == dt {
			if mult < 1.5 {
				mult = 1.5
			}
		}
	}
	return mult
}

func injectPriorityFiles(s *store.Store, ranked []*scoring.RankedResult, excluded []string, now time.Time) ([]*scoring.RankedResult, error) {
	byID := make(map[int64]*scoring.RankedResult, len(ranked))
	for _, r := range ranked {
		byID[r.ID] = r
	}

	for _, pp := range priorityPatterns {
		chunks, err := s.GetChunksByFile(pp.Substr)
		if err != nil {
			return nil, err
		}
		count := 0
		for _, c := range chunks {
			if count >= pp.Limit {
				break
			}
			if config.MatchGlobs(c.FilePath, excluded) {
				continue
			}
			if c.Stale {
				continue
			}
			if existing, ok := byID[c.ID]; ok {
				if existing.Score < pp.ScoreFloor {
					existing.Score = pp.ScoreFloor
				}
				existing.Injected = true
			} else {
				r := &scoring.RankedResult{Chunk: c, Score: pp.ScoreFloor, Injected: true}
				ranked = append(ranked, r)
				byID[c.ID] = r
			}
			count++
		}
	}
	return ranked, nil
}

func isoDateInPath(path string) string {
	m := isoDatePathRe.FindString(path)
	return m
}
