package config

import (
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// matchPattern reports whether a (normalized, slash-separated) path
// matches pattern, supporting doublestar's `*` (one segment) and `**`
// (zero or more segments) semantics.
func matchPattern(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// MatchGlobs reports whether path matches any of patterns.
func MatchGlobs(path string, patterns []string) bool {
	norm := filepath.ToSlash(path)
	for _, p := range patterns {
		if matchPattern(p, norm) {
			return true
		}
	}
	return false
}

// resolveMapping looks up path in a path-or-basename-or-glob keyed map,
// with exact full path beating exact basename beating any glob, and
// longest-pattern-wins among multiple matching globs (§4.2).
func resolveMapping[T any](path string, mapping map[string]T) (T, bool) {
	var zero T
	norm := filepath.ToSlash(path)
	base := filepath.Base(norm)

	if v, ok := mapping[norm]; ok {
		return v, true
	}
	if v, ok := mapping[base]; ok {
		return v, true
	}

	type candidate struct {
		pattern string
		value   T
	}
	var candidates []candidate
	for pattern, v := range mapping {
		if matchPattern(pattern, norm) {
			candidates = append(candidates, candidate{pattern, v})
		}
	}
	if len(candidates) == 0 {
		return zero, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i].pattern) > len(candidates[j].pattern)
	})
	return candidates[0].value, true
}

// ResolveFileType resolves a path to its fileTypeDefaults label, if any.
func (c Config) ResolveFileType(path string) (string, bool) {
	return resolveMapping(path, c.FileTypeDefaults)
}

// ResolveFileWeight resolves a path to its fileWeights override, if any.
func (c Config) ResolveFileWeight(path string) (float64, bool) {
	return resolveMapping(path, c.FileWeights)
}

// IsExcludedFromRecall reports whether path is hidden from ordinary
// (non-attribution) Context results.
func (c Config) IsExcludedFromRecall(path string) bool {
	return MatchGlobs(path, c.ExcludeFromRecall)
}

// IsAlwaysExcluded reports whether path is never returned, even for
// attribution queries.
func (c Config) IsAlwaysExcluded(path string) bool {
	return MatchGlobs(path, c.AlwaysExclude)
}

// EffectiveExclusion returns the exclusion pattern set to apply: the full
// excludeFromRecall+alwaysExclude set normally, or alwaysExclude alone
// when attribution lifts the usual exclusion (§4.6).
func (c Config) EffectiveExclusion(attribution bool) []string {
	if attribution {
		return c.AlwaysExclude
	}
	return append(append([]string{}, c.ExcludeFromRecall...), c.AlwaysExclude...)
}
