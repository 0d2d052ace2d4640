// Package textutil holds the tokenization and FTS sanitization logic
// shared verbatim between Recall and the Context Intelligence Layer, so
// the two surfaces never drift in what counts as a stop word or a query
// term.
package textutil

import (
	"strings"
	"unicode"
)

// stopWords is the closed-class English stop-word set excluded from FTS
// terms and contradiction token-overlap comparisons.
var stopWords = buildStopWords([]string{
	"a", "an", "the", "and", "or", "but", "nor", "so", "yet", "for",
	"of", "to", "in", "on", "at", "by", "with", "about", "against",
	"between", "into", "through", "during", "before", "after", "above",
	"below", "from", "up", "down", "out", "off", "over", "under",
	"again", "further", "then", "once", "here", "there", "when", "where",
	"why", "how", "all", "any", "both", "each", "few", "more", "most",
	"other", "some", "such", "no", "not", "only", "own", "same", "than",
	"too", "very", "s", "t", "can", "will", "just", "don", "should",
	"now", "i", "me", "my", "myself", "we", "our", "ours", "ourselves",
	"you", "your", "yours", "yourself", "yourselves", "he", "him", "his",
	"himself", "she", "her", "hers", "herself", "it", "its", "itself",
	"they", "them", "their", "theirs", "themselves", "what", "which",
	"who", "whom", "this", "that", "these", "those", "am", "is", "are",
	"was", "were", "be", "been", "being", "have", "has", "had", "having",
	"do", "does", "did", "doing", "would", "could", "ought", "im",
	"youre", "hes", "shes", "its", "were", "theyre", "ive", "youve",
	"weve", "theyve", "id", "youd", "hed", "shed", "wed", "theyd",
	"ill", "youll", "hell", "shell", "well", "theyll", "isnt", "arent",
	"wasnt", "werent", "hasnt", "havent", "hadnt", "doesnt", "dont",
	"didnt", "wont", "wouldnt", "shant", "shouldnt", "cant", "cannot",
	"couldnt", "mustnt", "lets", "as", "if", "because", "while", "until",
	"also", "get", "got", "one", "like",
})

func buildStopWords(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// IsStopWord reports whether word (already lowercased) is in the shared
// stop-word set.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Tokenize splits text into lowercase word tokens on non-letter,
// non-digit, non-@/#/_ runes, matching the FTS5 tokenizer's tokenchars
// so term extraction and FTS matching agree on what counts as a token.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '@' || r == '#' || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// SignificantTerms tokenizes text and drops tokens shorter than 2
// characters and stop words, the shared filter used by both Recall's
// sanitizer and CIL's term extraction (§4.5, §4.6).
func SignificantTerms(text string) []string {
	var out []string
	for _, tok := range Tokenize(text) {
		if len(tok) < 2 || IsStopWord(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// SanitizeFTSQuery strips AND/OR/NOT/NEAR operator tokens and punctuation
// from a raw query, drops stop words and sub-2-char tokens, quotes each
// survivor, and joins with a space — an implicit-AND FTS5 expression. An
// empty return means nothing survived and the caller should treat the
// query as producing no results.
func SanitizeFTSQuery(raw string) string {
	terms := SignificantTerms(raw)
	var kept []string
	for _, t := range terms {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return ""
	}
	quoted := make([]string, len(kept))
	for i, t := range kept {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// BuildORQuery expands each term with its aliases (if any) and joins the
// quoted variants with OR, for Recall's AND-then-OR fallback (§4.5).
func BuildORQuery(terms []string, aliases map[string][]string) string {
	var parts []string
	for _, t := range terms {
		variants := []string{t}
		if extra, ok := aliases[t]; ok {
			variants = append(variants, extra...)
		}
		for _, v := range variants {
			parts = append(parts, `"`+v+`"`)
		}
	}
	return strings.Join(parts, " OR ")
}

// CapitalizedSpans returns the distinct, lowercased proper-noun spans
// found in text — runs of capitalized words — used by CIL's term
// extraction to keep proper nouns even when they'd otherwise be filtered
// as too-short or stop words (§4.6).
func CapitalizedSpans(text string) []string {
	words := strings.Fields(text)
	var spans []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			spans = append(spans, strings.ToLower(strings.Join(cur, " ")))
			cur = nil
		}
	}
	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			flush()
			continue
		}
		runes := []rune(trimmed)
		if unicode.IsUpper(runes[0]) {
			cur = append(cur, trimmed)
		} else {
			flush()
		}
	}
	flush()

	seen := map[string]bool{}
	var out []string
	for _, s := range spans {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
