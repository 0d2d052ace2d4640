// Package reflect runs the periodic maintenance cycle over a workspace's
// memory index: decay, reinforce, stale-marking, contradiction detection,
// pruning, and entity index rebuild, each in its own transaction (§4.7).
package reflect

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/entities"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
	"github.com/mehmetkoksal-w/memoryindex/internal/textutil"
)

// Report is run_reflect_cycle's return shape, mirroring the teacher's
// DecayResult/DecayStats split across a multi-pass cycle.
type Report struct {
	DryRun              bool
	Decayed             []ConfidenceChange
	Reinforced          []ConfidenceChange
	MarkedStale         []int64
	ContradictionsFound []ContradictionRecord
	Pruned              []int64
	EntityRecords       int
}

// ConfidenceChange records one chunk's confidence before/after a pass.
type ConfidenceChange struct {
	ChunkID int64
	OldConf float64
	NewConf float64
}

// ContradictionRecord mirrors a newly inserted contradiction for the report.
type ContradictionRecord struct {
	OldID  int64
	NewID  int64
	Reason string
}

// Run executes every pass of run_reflect_cycle in order (§4.7). Each pass
// is wrapped in its own store.WithTx call; dryRun=true computes identical
// reports without persisting any writes.
func Run(s *store.Store, cfg config.Config, dryRun bool, now time.Time) (Report, error) {
	report := Report{DryRun: dryRun}

	if err := decayPass(s, cfg, dryRun, now, &report); err != nil {
		return report, fmt.Errorf("decay pass: %w", err)
	}
	if err := reinforcePass(s, dryRun, &report); err != nil {
		return report, fmt.Errorf("reinforce pass: %w", err)
	}
	if err := markStalePass(s, dryRun, now, &report); err != nil {
		return report, fmt.Errorf("mark stale pass: %w", err)
	}
	if err := contradictionPass(s, cfg, dryRun, &report); err != nil {
		return report, fmt.Errorf("contradiction pass: %w", err)
	}
	if err := prunePass(s, dryRun, now, &report); err != nil {
		return report, fmt.Errorf("prune pass: %w", err)
	}

	records, err := entities.BuildIndex(s, dryRun)
	if err != nil {
		return report, fmt.Errorf("entity index rebuild: %w", err)
	}
	report.EntityRecords = len(records)

	return report, nil
}

// decayPass implements §4.7 step 1.
func decayPass(s *store.Store, cfg config.Config, dryRun bool, now time.Time, report *Report) error {
	chunks, err := s.ChunksForDecay()
	if err != nil {
		return err
	}
	halfLife := cfg.Reflect.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 365
	}

	return s.WithTx(dryRun, func(tx *store.Tx) error {
		for _, c := range chunks {
			ref := c.CreatedAt
			if c.LastAccessed != nil {
				ref = *c.LastAccessed
			}
			d := now.Sub(ref).Hours() / 24
			if d < 0 {
				d = 0
			}
			rate := cfg.Reflect.DecayRate
			if c.ChunkType == store.TypeOutdated {
				rate *= 2.0
			}
			delta := (d / halfLife) * rate * 0.5
			newConf := round3(math.Max(0, c.Confidence-delta))
			if newConf == c.Confidence {
				continue
			}
			if err := tx.UpdateConfidence(c.ID, newConf); err != nil {
				return err
			}
			report.Decayed = append(report.Decayed, ConfidenceChange{ChunkID: c.ID, OldConf: c.Confidence, NewConf: newConf})
		}
		return nil
	})
}

// reinforcePass implements §4.7 step 2. Idempotent: a chunk already at or
// above its reinforced floor is left untouched.
func reinforcePass(s *store.Store, dryRun bool, report *Report) error {
	chunks, err := s.ChunksWithAccess()
	if err != nil {
		return err
	}

	return s.WithTx(dryRun, func(tx *store.Tx) error {
		for _, c := range chunks {
			floor := math.Min(0.5, float64(c.AccessCount)*0.02)
			if c.Confidence >= floor {
				continue
			}
			newConf := round3(floor)
			if err := tx.UpdateConfidence(c.ID, newConf); err != nil {
				return err
			}
			report.Reinforced = append(report.Reinforced, ConfidenceChange{ChunkID: c.ID, OldConf: c.Confidence, NewConf: newConf})
		}
		return nil
	})
}

// markStalePass implements §4.7 step 3.
func markStalePass(s *store.Store, dryRun bool, now time.Time, report *Report) error {
	chunks, err := s.NonStaleChunks()
	if err != nil {
		return err
	}

	return s.WithTx(dryRun, func(tx *store.Tx) error {
		for _, c := range chunks {
			age := now.Sub(c.CreatedAt).Hours() / 24
			stale := (c.Confidence < 0.3 && age > 90) || (c.Confidence < 0.1 && age > 30)
			if !stale {
				continue
			}
			if err := tx.SetStale(c.ID, true); err != nil {
				return err
			}
			report.MarkedStale = append(report.MarkedStale, c.ID)
		}
		return nil
	})
}

var negationRe = regexp.MustCompile(`(?i)\b(not|no longer|stopped|quit|switched from|dropped|removed|cancelled|never|don't|doesn't|didn't|won't|can't)\b`)

var isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// contradictionPass implements §4.7 step 4.
func contradictionPass(s *store.Store, cfg config.Config, dryRun bool, report *Report) error {
	chunks, err := s.NonStaleChunks()
	if err != nil {
		return err
	}

	groups := map[string][]store.Chunk{}
	for _, c := range chunks {
		h := store.NormalizeHeading(c.Heading)
		if h == "" || store.IsGenericHeading(h) {
			continue
		}
		groups[h] = append(groups[h], c)
	}

	minShared := cfg.Reflect.ContradictionMinSharedTerms
	if minShared <= 0 {
		minShared = 3
	}

	return s.WithTx(dryRun, func(tx *store.Tx) error {
		for _, group := range groups {
			if len(group) > 50 {
				continue
			}
			distinctFiles := map[string]bool{}
			for _, c := range group {
				distinctFiles[c.FilePath] = true
			}
			if len(distinctFiles) >= 3 {
				continue // template heading
			}

			sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					a, b := group[i], group[j]
					if a.FilePath == b.FilePath {
						continue
					}
					if !evaluatePair(a, b, minShared, cfg.Reflect.ContradictionTemporalAwareness, cfg.Reflect.ContradictionRequireProximity) {
						continue
					}
					reason := fmt.Sprintf("Shared terms: %s; negation detected", strings.Join(sharedTerms(a.Content, b.Content), ", "))
					inserted, err := tx.InsertContradiction(a.ID, b.ID, reason)
					if err != nil {
						return err
					}
					if inserted {
						report.ContradictionsFound = append(report.ContradictionsFound, ContradictionRecord{OldID: a.ID, NewID: b.ID, Reason: reason})
					}
				}
			}
		}
		return nil
	})
}

func sharedTerms(a, b string) []string {
	setA := map[string]bool{}
	for _, t := range textutil.SignificantTerms(a) {
		if len(t) > 2 {
			setA[t] = true
		}
	}
	var shared []string
	seen := map[string]bool{}
	for _, t := range textutil.SignificantTerms(b) {
		if len(t) > 2 && setA[t] && !seen[t] {
			seen[t] = true
			shared = append(shared, t)
		}
	}
	return shared
}

// evaluatePair reports whether (a, b) qualifies as a contradiction per
// §4.7 step 4's filter chain.
func evaluatePair(a, b store.Chunk, minShared int, temporalAware, requireProximity bool) bool {
	termsA := map[string]bool{}
	for _, t := range textutil.SignificantTerms(a.Content) {
		if len(t) > 2 {
			termsA[t] = true
		}
	}
	termsB := map[string]bool{}
	for _, t := range textutil.SignificantTerms(b.Content) {
		if len(t) > 2 {
			termsB[t] = true
		}
	}
	shared := sharedTerms(a.Content, b.Content)
	if len(shared) < minShared {
		return false
	}

	smaller := len(termsA)
	if len(termsB) < smaller {
		smaller = len(termsB)
	}
	if smaller > 0 && float64(len(shared))/float64(smaller) > 0.8 {
		return false // near-duplicate
	}

	negA := negationRe.MatchString(a.Content)
	negB := negationRe.MatchString(b.Content)
	if !negA && !negB {
		return false
	}

	if temporalAware {
		dateA := isoDateRe.FindString(a.FilePath)
		dateB := isoDateRe.FindString(b.FilePath)
		if dateA != "" && dateB != "" {
			// Only the newer chunk carries the negation: a temporal
			// update, not a contradiction.
			if (a.CreatedAt.After(b.CreatedAt) && negA && !negB) ||
				(b.CreatedAt.After(a.CreatedAt) && negB && !negA) {
				return false
			}
		}
	}

	if requireProximity {
		if !negationNearSharedTerm(a.Content, shared) && !negationNearSharedTerm(b.Content, shared) {
			return false
		}
	}

	return true
}

// negationNearSharedTerm reports whether a negation word appears within 8
// token positions of any shared term in content.
func negationNearSharedTerm(content string, shared []string) bool {
	tokens := textutil.Tokenize(content)
	sharedSet := map[string]bool{}
	for _, t := range shared {
		sharedSet[t] = true
	}
	negPositions := []int{}
	for i, tok := range tokens {
		if negationRe.MatchString(tok) {
			negPositions = append(negPositions, i)
		}
	}
	if len(negPositions) == 0 {
		return false
	}
	for i, tok := range tokens {
		if !sharedSet[tok] {
			continue
		}
		for _, np := range negPositions {
			d := i - np
			if d < 0 {
				d = -d
			}
			if d <= 8 {
				return true
			}
		}
	}
	return false
}

// prunePass implements §4.7 step 5.
func prunePass(s *store.Store, dryRun bool, now time.Time, report *Report) error {
	chunks, err := s.AllChunksForPrune()
	if err != nil {
		return err
	}

	return s.WithTx(dryRun, func(tx *store.Tx) error {
		for _, c := range chunks {
			age := now.Sub(c.CreatedAt).Hours() / 24
			eligible := (c.Confidence < 0.1 && age > 180) || (c.AccessCount == 0 && c.Confidence < 0.05)
			if !eligible {
				continue
			}
			if err := tx.ArchiveAndDelete(c.ID, "stale and below retention threshold"); err != nil {
				return err
			}
			report.Pruned = append(report.Pruned, c.ID)
		}
		return nil
	})
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// Restore wraps store.Restore for the reflect surface (§4.7).
func Restore(s *store.Store, archiveID int64) (int64, error) {
	return s.Restore(archiveID)
}

// ResolveContradiction wraps store.ResolveContradiction for the reflect
// surface (§4.7).
func ResolveContradiction(s *store.Store, id int64, action string) error {
	return s.ResolveContradiction(id, action)
}
