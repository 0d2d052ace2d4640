package indexer

import (
	"regexp"
	"strings"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

var entityTokenRe = regexp.MustCompile(`@[A-Za-z0-9_]+`)
var boldSpanRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

// ExtractEntities returns the set of @word tokens (with the @) and every
// substring inside **bold** spans (§4.3).
func ExtractEntities(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(e string) {
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}
	for _, m := range entityTokenRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range boldSpanRe.FindAllStringSubmatch(text, -1) {
		add(strings.TrimSpace(m[1]))
	}
	return out
}

// taggedFactRe matches a `[type] text` line, optionally prefixed by a
// markdown bullet marker (`- `/`* `) as written by remember's daily logs,
// capturing the label.
var taggedFactRe = regexp.MustCompile(`^\s*(?:[-*]\s+)?\[([a-zA-Z_]+)\]\s*(.*)$`)

// TaggedFact is one `[type] text` line found in a source file, with its
// 1-based source line number.
type TaggedFact struct {
	Line       int
	ChunkType  store.ChunkType
	Confidence float64
}

// ExtractTaggedFacts scans text for `[type] text` lines and resolves each
// recognized label to a (type, confidence) pair via config.TypeOverride.
// Unrecognized labels are ignored (§4.2, §4.3).
func ExtractTaggedFacts(text string) []TaggedFact {
	var facts []TaggedFact
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := taggedFactRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ct, conf, ok := config.TypeOverride(strings.ToLower(m[1]))
		if !ok {
			continue
		}
		facts = append(facts, TaggedFact{Line: i + 1, ChunkType: ct, Confidence: conf})
	}
	return facts
}

// headingKeyword pairs a recognized heading substring with the chunk type
// untagged bullets beneath it classify as (§6: "Headings matching the
// substrings {decision, fact, preference, learned, open question, todo,
// pending} cause un-tagged bullets beneath them to be classified with
// confidence 0.9"). Checked in this order; the first substring match wins.
var headingKeywords = []struct {
	Substr string
	Type   store.ChunkType
}{
	{"decision", store.TypeDecision},
	{"fact", store.TypeFact},
	{"preference", store.TypePreference},
	{"learned", store.TypeFact},
	{"open question", store.TypeInferred},
	{"todo", store.TypeActionItem},
	{"pending", store.TypeActionItem},
}

// headingClassificationConfidence is the fixed confidence §6 assigns to
// every heading-classified chunk, regardless of which keyword matched.
const headingClassificationConfidence = 0.9

// ClassifyHeading resolves a chunk's heading (lowercased substring match)
// to the (type, confidence) pair §6 assigns untagged bullets beneath a
// recognized heading, or false if the heading matches none of them.
func ClassifyHeading(heading string) (store.ChunkType, float64, bool) {
	lower := strings.ToLower(heading)
	for _, kw := range headingKeywords {
		if strings.Contains(lower, kw.Substr) {
			return kw.Type, headingClassificationConfidence, true
		}
	}
	return "", 0, false
}

// HighestConfidenceFactInSpan returns the highest-confidence tagged fact
// whose line lies within [lineStart, lineEnd], or false if none does
// (§4.3 step 3).
func HighestConfidenceFactInSpan(facts []TaggedFact, lineStart, lineEnd int) (TaggedFact, bool) {
	var best TaggedFact
	found := false
	for _, f := range facts {
		if f.Line < lineStart || f.Line > lineEnd {
			continue
		}
		if !found || f.Confidence > best.Confidence {
			best = f
			found = true
		}
	}
	return best, found
}
