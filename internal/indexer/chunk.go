package indexer

import (
	"regexp"
	"strings"
)

// RawChunk is a chunk straight out of markdown splitting, before entity
// extraction or fact-tag resolution.
type RawChunk struct {
	Heading   string
	Content   string
	LineStart int
	LineEnd   int
}

var headingRe = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)

const maxChunkChars = 2000
const minChunkChars = 5

// ChunkMarkdown splits text by headings of level 1-4. A new chunk begins
// at each heading; the preceding chunk is flushed unless empty. Line
// numbers are 1-based, closed intervals. Short chunks are dropped,
// oversized chunks are re-split at paragraph boundaries (§4.3).
func ChunkMarkdown(text string) []RawChunk {
	lines := strings.Split(text, "\n")

	var chunks []RawChunk
	var curHeading string
	var curLines []string
	curStart := 1

	flush := func(endLine int) {
		content := strings.TrimRight(strings.Join(curLines, "\n"), "\n")
		stripped := strings.TrimSpace(stripHeadingLine(content, curHeading))
		if len(stripped) >= minChunkChars {
			chunks = append(chunks, RawChunk{
				Heading:   curHeading,
				Content:   content,
				LineStart: curStart,
				LineEnd:   endLine,
			})
		}
		curLines = nil
	}

	for i, line := range lines {
		lineNo := i + 1
		if m := headingRe.FindStringSubmatch(line); m != nil {
			if len(curLines) > 0 {
				flush(lineNo - 1)
			}
			curHeading = strings.TrimSpace(m[2])
			curStart = lineNo
			curLines = []string{line}
			continue
		}
		curLines = append(curLines, line)
	}
	if len(curLines) > 0 {
		flush(len(lines))
	}

	var out []RawChunk
	for _, c := range chunks {
		if len(c.Content) > maxChunkChars {
			out = append(out, resplit(c)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// stripHeadingLine removes a leading heading line from content so the
// minimum-length check measures only body text, not the heading itself.
func stripHeadingLine(content, heading string) string {
	if heading == "" {
		return content
	}
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 2 && headingRe.MatchString(lines[0]) {
		return lines[1]
	}
	if len(lines) == 1 && headingRe.MatchString(lines[0]) {
		return ""
	}
	return content
}

// resplit re-splits an oversized chunk at blank-line (paragraph) runs
// into pieces of at most maxChunkChars, preserving the original heading
// context and line span on the final piece (§4.3).
func resplit(c RawChunk) []RawChunk {
	paragraphs := splitParagraphs(c.Content)

	var out []RawChunk
	var curParas []string
	curLen := 0
	lineCursor := c.LineStart

	flush := func(endLine int) {
		if len(curParas) == 0 {
			return
		}
		content := strings.Join(curParas, "\n\n")
		out = append(out, RawChunk{
			Heading:   c.Heading,
			Content:   content,
			LineStart: lineCursor,
			LineEnd:   endLine,
		})
		curParas = nil
		curLen = 0
	}

	for _, p := range paragraphs {
		lineSpan := strings.Count(p.text, "\n") + 1
		sep := 0
		if curLen > 0 {
			sep = len("\n\n")
		}
		if curLen > 0 && curLen+sep+len(p.text) > maxChunkChars {
			flush(lineCursor + lineSpan - 1)
			lineCursor += lineSpan
			sep = 0
		}
		curParas = append(curParas, p.text)
		curLen += sep + len(p.text)
	}
	flush(c.LineEnd)

	if len(out) > 0 {
		out[len(out)-1].LineEnd = c.LineEnd
	}
	return out
}

type paragraph struct {
	text string
}

func splitParagraphs(content string) []paragraph {
	parts := regexp.MustCompile(`\n\s*\n`).Split(content, -1)
	out := make([]paragraph, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, paragraph{text: p})
	}
	return out
}
