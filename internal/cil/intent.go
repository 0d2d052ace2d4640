package cil

import (
	"regexp"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Intent is the detected query intent category (§4.6). The zero value
// means no category matched.
type Intent string

const (
	IntentNone        Intent = ""
	IntentAggregation Intent = "aggregation"
	IntentReasoning   Intent = "reasoning"
	IntentAction      Intent = "action"
)

var (
	aggregationRe = regexp.MustCompile(`(?i)\b(all my|everything|list all|list every|summarize|summary|overview)\b`)
	reasoningRe   = regexp.MustCompile(`(?i)\b(why did|what was the reason|how did i decide|how did we decide|rationale)\b`)
	actionRe      = regexp.MustCompile(`(?i)\b(what should i|what's next|whats next|what do i need|open items|open loops|open tasks|action items|to-do|todo)\b`)
)

// detectIntent returns the first matching intent category, in the fixed
// priority order aggregation, reasoning, action (§4.6).
func detectIntent(message string) Intent {
	switch {
	case aggregationRe.MatchString(message):
		return IntentAggregation
	case reasoningRe.MatchString(message):
		return IntentReasoning
	case actionRe.MatchString(message):
		return IntentAction
	default:
		return IntentNone
	}
}

// intentParams carries the per-intent tunables CIL's pipeline consults.
type intentParams struct {
	MaxChunks    int
	MinScore     float64
	TypeBoosts   map[store.ChunkType]float64
	SyntheticTerms []string
}

func paramsFor(intent Intent) intentParams {
	switch intent {
	case IntentAggregation:
		return intentParams{MaxChunks: 15, MinScore: 0.10}
	case IntentReasoning:
		return intentParams{
			TypeBoosts: map[store.ChunkType]float64{store.TypeDecision: 0.25, store.TypeConfirmed: 0.20},
		}
	case IntentAction:
		return intentParams{
			TypeBoosts: map[store.ChunkType]float64{store.TypeActionItem: 0.25, store.TypeDecision: 0.15},
			SyntheticTerms: []string{"priority", "pending", "action", "focus", "task", "loop", "waiting", "blocked"},
		}
	default:
		return intentParams{}
	}
}
