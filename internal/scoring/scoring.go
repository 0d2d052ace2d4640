// Package scoring implements the composite score function and the three
// weight profiles shared by Recall and the Context Intelligence Layer
// (§4.4).
package scoring

import (
	"math"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Profile is a fixed weight configuration for score().
type Profile struct {
	Name         string
	WeightFTS    float64
	WeightSem    float64
	WeightRec    float64
	WeightType   float64
	WeightFW     float64
	WeightEntity float64
	HalfLifeDays float64
	ConfExponent float64
}

var (
	RECALL = Profile{
		Name: "RECALL",
		WeightFTS: 0.50, WeightRec: 0.25, WeightType: 0.10, WeightFW: 0.10, WeightEntity: 0.05,
		WeightSem: 0, HalfLifeDays: 90, ConfExponent: 1.0,
	}
	CIL = Profile{
		Name: "CIL",
		WeightFTS: 0.35, WeightRec: 0.30, WeightType: 0.15, WeightFW: 0.10, WeightEntity: 0.10,
		WeightSem: 0, HalfLifeDays: 14, ConfExponent: 1.5,
	}
	CILSemantic = Profile{
		Name: "CIL_SEMANTIC",
		WeightFTS: 0.20, WeightRec: 0.20, WeightType: 0.10, WeightFW: 0.10, WeightEntity: 0.10,
		WeightSem: 0.30, HalfLifeDays: 14, ConfExponent: 1.5,
	}
)

var typeBonus = map[store.ChunkType]float64{
	store.TypeConfirmed:  0.15,
	store.TypeDecision:   0.12,
	store.TypePreference: 0.10,
	store.TypeActionItem: 0.10,
	store.TypeFact:       0.08,
	store.TypeOpinion:    0.04,
	store.TypeInferred:   0,
	store.TypeRaw:        0,
	store.TypeOutdated:   -0.15,
}

// Overrides carries the transient, per-candidate signals that score()
// needs beyond the persisted chunk fields (§4.4, §9): normalized FTS
// score, semantic similarity, entity match, recency half-life override,
// and a file_weight override (from config.fileWeights).
type Overrides struct {
	NormalizedFTS  float64
	SemanticSim    float64
	EntityMatch    bool
	HalfLifeDays   float64 // 0 means use the profile's default
	FileWeight     float64 // 0 means use the chunk's stored FileWeight
}

// Score computes the composite score for a chunk under profile at time
// now, per §4.4's formula.
func Score(c store.Chunk, now time.Time, profile Profile, ov Overrides) float64 {
	halfLife := profile.HalfLifeDays
	if ov.HalfLifeDays > 0 {
		halfLife = ov.HalfLifeDays
	}
	daysSince := now.Sub(c.CreatedAt).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}
	recency := math.Exp(-math.Ln2 * daysSince / halfLife)

	typeNorm := (typeBonus[c.ChunkType] + 0.15) / 0.30

	fw := c.FileWeight
	if ov.FileWeight > 0 {
		fw = ov.FileWeight
	}
	fileW := fw / 1.5

	entity := 0.0
	if ov.EntityMatch {
		entity = 1.0
	}

	sem := ov.SemanticSim
	nFTS := ov.NormalizedFTS

	var base float64
	if profile.WeightSem > 0 && sem > 0 {
		base = profile.WeightFTS*nFTS + profile.WeightSem*sem +
			profile.WeightRec*recency + profile.WeightType*typeNorm +
			profile.WeightFW*fileW + profile.WeightEntity*entity
	} else {
		base = (profile.WeightFTS+profile.WeightSem)*nFTS +
			profile.WeightRec*recency + profile.WeightType*typeNorm +
			profile.WeightFW*fileW + profile.WeightEntity*entity
	}

	return base * math.Pow(c.Confidence, profile.ConfExponent)
}

// RankedResult carries a chunk alongside every transient scoring and
// matching signal computed across Recall/CIL's pipeline (§9 design note:
// a single shared candidate record rather than parallel maps keyed by id).
type RankedResult struct {
	store.Chunk
	RawRank        float64
	NormalizedFTS  float64
	SemanticSim    float64
	AndMatch       bool
	EntityMatch    bool
	Injected       bool
	RulePenalty    float64
	Score          float64
}

// NormalizeFTSScores maps each result's RawRank (more negative = better)
// to [0.3, 1.0]: best → 1.0, worst → 0.3, linear in between. A single-row
// set, or a set where all ranks are equal, maps every row to 1.0 / 0.3
// respectively (§4.4).
func NormalizeFTSScores(results []*RankedResult) {
	if len(results) == 0 {
		return
	}
	if len(results) == 1 {
		results[0].NormalizedFTS = 1.0
		return
	}

	best, worst := results[0].RawRank, results[0].RawRank
	for _, r := range results {
		if r.RawRank < best {
			best = r.RawRank
		}
		if r.RawRank > worst {
			worst = r.RawRank
		}
	}
	if best == worst {
		for _, r := range results {
			r.NormalizedFTS = 0.3
		}
		return
	}
	for _, r := range results {
		// RawRank is negative/better; map best (most negative) -> 1.0,
		// worst (least negative) -> 0.3, linear in between.
		t := (r.RawRank - worst) / (best - worst)
		r.NormalizedFTS = 0.3 + t*0.7
	}
}
