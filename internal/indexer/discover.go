// Package indexer discovers workspace markdown, splits it into chunks,
// extracts entities and tagged facts, and keeps the store in sync with
// the filesystem (§4.3).
package indexer

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// fixedTopLevelFiles are always indexed when present, regardless of
// include/includeGlobs (§4.3).
var fixedTopLevelFiles = []string{
	"MEMORY.md", "USER.md", "SOUL.md", "STATE.md", "TOOLS.md", "VOICE.md", "IDENTITY.md",
}

// DiscoverFiles returns the deduplicated, workspace-relative set of files
// to index: the fixed top-level files if present, every *.md under
// memory/ and ingest/, and every path resolved from includes/includeGlobs.
func DiscoverFiles(workspace string, includes, includeGlobs []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(rel string) {
		rel = filepath.ToSlash(rel)
		if !seen[rel] {
			seen[rel] = true
			out = append(out, rel)
		}
	}

	for _, name := range fixedTopLevelFiles {
		if _, err := os.Stat(filepath.Join(workspace, name)); err == nil {
			add(name)
		}
	}

	for _, dir := range []string{"memory", "ingest"} {
		matches, err := doublestar.Glob(os.DirFS(workspace), dir+"/**/*.md")
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	for _, inc := range includes {
		if _, err := os.Stat(filepath.Join(workspace, inc)); err == nil {
			add(inc)
		}
	}

	for _, pattern := range includeGlobs {
		matches, err := doublestar.Glob(os.DirFS(workspace), pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	return out, nil
}

// extractDateFromPath returns the first YYYY-MM-DD substring in path, or
// empty if none is found (§4.3).
func extractDateFromPath(path string) string {
	for i := 0; i+10 <= len(path); i++ {
		cand := path[i : i+10]
		if isISODate(cand) {
			return cand
		}
	}
	return ""
}

func isISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	y, m, d := s[0:4], s[5:7], s[8:10]
	_ = y
	if m < "01" || m > "12" {
		return false
	}
	if d < "01" || d > "31" {
		return false
	}
	return true
}

// statMTimeMs returns the file's modification time in Unix milliseconds.
func statMTimeMs(absPath string) (int64, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixMilli(), nil
}
