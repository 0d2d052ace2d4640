package scoring

import (
	"testing"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

func TestScoreConfirmedBeatsOutdatedAllElseEqual(t *testing.T) {
	now := time.Now()
	base := store.Chunk{
		CreatedAt:  now,
		FileWeight: 1.0,
		Confidence: 1.0,
	}
	confirmed := base
	confirmed.ChunkType = store.TypeConfirmed
	outdated := base
	outdated.ChunkType = store.TypeOutdated

	ov := Overrides{NormalizedFTS: 0.8}
	sConfirmed := Score(confirmed, now, RECALL, ov)
	sOutdated := Score(outdated, now, RECALL, ov)

	if sConfirmed <= sOutdated {
		t.Errorf("expected confirmed score (%v) > outdated score (%v)", sConfirmed, sOutdated)
	}
}

func TestScoreDecaysWithAge(t *testing.T) {
	now := time.Now()
	fresh := store.Chunk{CreatedAt: now, FileWeight: 1.0, Confidence: 1.0, ChunkType: store.TypeFact}
	old := store.Chunk{CreatedAt: now.Add(-200 * 24 * time.Hour), FileWeight: 1.0, Confidence: 1.0, ChunkType: store.TypeFact}

	ov := Overrides{NormalizedFTS: 0.8}
	sFresh := Score(fresh, now, RECALL, ov)
	sOld := Score(old, now, RECALL, ov)

	if sFresh <= sOld {
		t.Errorf("expected fresh score (%v) > old score (%v)", sFresh, sOld)
	}
}

func TestScoreZeroConfidenceYieldsZero(t *testing.T) {
	now := time.Now()
	c := store.Chunk{CreatedAt: now, FileWeight: 1.0, Confidence: 0, ChunkType: store.TypeFact}
	s := Score(c, now, RECALL, Overrides{NormalizedFTS: 1.0})
	if s != 0 {
		t.Errorf("expected zero score for zero confidence, got %v", s)
	}
}

func TestNormalizeFTSScoresSingleRow(t *testing.T) {
	results := []*RankedResult{{RawRank: -5}}
	NormalizeFTSScores(results)
	if results[0].NormalizedFTS != 1.0 {
		t.Errorf("expected single-row set to normalize to 1.0, got %v", results[0].NormalizedFTS)
	}
}

func TestNormalizeFTSScoresSpread(t *testing.T) {
	results := []*RankedResult{{RawRank: -10}, {RawRank: -5}, {RawRank: 0}}
	NormalizeFTSScores(results)

	if results[0].NormalizedFTS != 1.0 {
		t.Errorf("expected best rank to normalize to 1.0, got %v", results[0].NormalizedFTS)
	}
	if results[2].NormalizedFTS != 0.3 {
		t.Errorf("expected worst rank to normalize to 0.3, got %v", results[2].NormalizedFTS)
	}
	if results[1].NormalizedFTS <= 0.3 || results[1].NormalizedFTS >= 1.0 {
		t.Errorf("expected middle rank strictly between 0.3 and 1.0, got %v", results[1].NormalizedFTS)
	}
}

func TestNormalizeFTSScoresAllEqual(t *testing.T) {
	results := []*RankedResult{{RawRank: -5}, {RawRank: -5}}
	NormalizeFTSScores(results)
	for _, r := range results {
		if r.NormalizedFTS != 0.3 {
			t.Errorf("expected all-equal ranks to normalize to 0.3, got %v", r.NormalizedFTS)
		}
	}
}
