package cil

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe    = regexp.MustCompile("`[^`\n]*`")
	xmlTagRe        = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	envelopeLineRe  = regexp.MustCompile(`(?im)^\s*(system|context|user|assistant)\s*:.*$`)
	recalledCtxRe   = regexp.MustCompile(`(?s)## Recalled Context.*?(\n## |\z)`)
)

// stripEnvelope removes everything CIL must ignore before term extraction
// and temporal resolution run: fenced/inline code, XML-like metadata tags,
// role-prefixed transcript lines, and any prior recalled-context section
// CIL itself appended to an earlier turn (§4.6).
func stripEnvelope(message string) string {
	out := fencedCodeRe.ReplaceAllString(message, " ")
	out = inlineCodeRe.ReplaceAllString(out, " ")
	out = recalledCtxRe.ReplaceAllStringFunc(out, func(m string) string {
		// Preserve a trailing "## " boundary so later headings survive.
		if strings.HasSuffix(m, "## ") {
			return "## "
		}
		return ""
	})
	out = xmlTagRe.ReplaceAllString(out, " ")
	out = envelopeLineRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
