// Package config loads the workspace's .memory/config.json and
// .memory/aliases.json, deep-merged over built-in defaults, and exposes
// the pattern matchers (file type, file weight, exclusion) scoring and
// indexing consult at runtime (§4.2).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// ReflectConfig carries Reflect's tunables (§4.2, §4.7).
type ReflectConfig struct {
	DecayRate                      float64 `json:"decayRate"`
	HalfLifeDays                   float64 `json:"halfLifeDays"`
	ContradictionMinSharedTerms    int     `json:"contradictionMinSharedTerms"`
	ContradictionTemporalAwareness bool    `json:"contradictionTemporalAwareness"`
	ContradictionRequireProximity  bool    `json:"contradictionRequireProximity"`
}

// IngestConfig carries the ingest package's tunables (§4.2).
type IngestConfig struct {
	SourceDir    string `json:"sourceDir"`
	AutoSync     bool   `json:"autoSync"`
	EntityColumn string `json:"entityColumn"`
}

// Config is the decoded, deep-merged-over-defaults workspace configuration.
type Config struct {
	Owner             string            `json:"owner"`
	Include           []string          `json:"include"`
	IncludeGlobs      []string          `json:"includeGlobs"`
	FileTypeDefaults  map[string]string `json:"fileTypeDefaults"`
	FileWeights       map[string]float64 `json:"fileWeights"`
	ExcludeFromRecall []string          `json:"excludeFromRecall"`
	AlwaysExclude     []string          `json:"alwaysExclude"`
	Reflect           ReflectConfig     `json:"reflect"`
	Ingest            IngestConfig      `json:"ingest"`

	// Aliases maps a term to the additional terms it expands to for OR
	// fallback search (§4.5, §6). Loaded from aliases.json, not config.json.
	Aliases map[string][]string `json:"-"`
}

// Defaults returns the built-in configuration merged under any
// workspace-supplied config.json.
func Defaults() Config {
	return Config{
		Include:           nil,
		IncludeGlobs:      nil,
		FileTypeDefaults:  map[string]string{},
		FileWeights:       map[string]float64{},
		ExcludeFromRecall: []string{"**/transcripts/**", "**/ingest/**"},
		AlwaysExclude:     []string{"**/.memory/**", "**/node_modules/**"},
		Reflect: ReflectConfig{
			DecayRate:                      1.0,
			HalfLifeDays:                   365,
			ContradictionMinSharedTerms:     3,
			ContradictionTemporalAwareness: true,
			ContradictionRequireProximity:  false,
		},
		Ingest: IngestConfig{
			SourceDir:    "ingest",
			AutoSync:     false,
			EntityColumn: "",
		},
		Aliases: defaultAliases(),
	}
}

// defaultAliases is the built-in alias table referenced by §6 for OR
// fallback search term expansion.
func defaultAliases() map[string][]string {
	return map[string][]string{
		"db":      {"database"},
		"auth":    {"authentication", "authorization"},
		"config":  {"configuration", "settings"},
		"repo":    {"repository"},
		"prod":    {"production"},
		"dev":     {"development"},
		"ui":      {"interface", "frontend"},
		"api":     {"endpoint", "service"},
		"perf":    {"performance"},
		"infra":   {"infrastructure"},
		"deploy":  {"deployment", "release"},
		"k8s":     {"kubernetes"},
	}
}

// Load reads {workspace}/.memory/config.json and .memory/aliases.json,
// deep-merges config.json over Defaults(), and validates it against the
// embedded schema. Any parse or validation failure warns once (via the
// returned warning string, never a fatal error) and falls back to
// defaults entirely (§4.2, §1 error-handling policy).
func Load(workspace string) (Config, string) {
	cfg := Defaults()
	var warning string

	configPath := filepath.Join(workspace, ".memory", "config.json")
	if raw, err := os.ReadFile(configPath); err == nil {
		if verr := validateAgainstSchema(jsonc.ToJSON(raw)); verr != nil {
			return cfg, fmt.Sprintf("config.json failed schema validation, using defaults: %v", verr)
		}
		var overlay map[string]json.RawMessage
		if derr := decodeJSONCFile(configPath, &overlay); derr != nil {
			return cfg, fmt.Sprintf("config.json failed to parse, using defaults: %v", derr)
		}
		if err := mergeOverlay(&cfg, overlay); err != nil {
			return cfg, fmt.Sprintf("config.json failed to merge, using defaults: %v", err)
		}
	} else if !os.IsNotExist(err) {
		warning = fmt.Sprintf("could not read config.json, using defaults: %v", err)
	}

	aliasPath := filepath.Join(workspace, ".memory", "aliases.json")
	if _, err := os.Stat(aliasPath); err == nil {
		var aliases map[string][]string
		if aerr := decodeJSONCFile(aliasPath, &aliases); aerr != nil {
			if warning == "" {
				warning = fmt.Sprintf("aliases.json failed to parse, using built-in aliases: %v", aerr)
			}
		} else {
			for k, v := range aliases {
				cfg.Aliases[k] = v
			}
		}
	}

	return cfg, warning
}

// mergeOverlay applies only the keys present in overlay on top of cfg,
// leaving every other default untouched (a deep merge, not a replace).
func mergeOverlay(cfg *Config, overlay map[string]json.RawMessage) error {
	if raw, ok := overlay["owner"]; ok {
		if err := json.Unmarshal(raw, &cfg.Owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	if raw, ok := overlay["include"]; ok {
		if err := json.Unmarshal(raw, &cfg.Include); err != nil {
			return fmt.Errorf("include: %w", err)
		}
	}
	if raw, ok := overlay["includeGlobs"]; ok {
		if err := json.Unmarshal(raw, &cfg.IncludeGlobs); err != nil {
			return fmt.Errorf("includeGlobs: %w", err)
		}
	}
	if raw, ok := overlay["fileTypeDefaults"]; ok {
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("fileTypeDefaults: %w", err)
		}
		for k, v := range m {
			cfg.FileTypeDefaults[k] = v
		}
	}
	if raw, ok := overlay["fileWeights"]; ok {
		var m map[string]float64
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("fileWeights: %w", err)
		}
		for k, v := range m {
			cfg.FileWeights[k] = v
		}
	}
	if raw, ok := overlay["excludeFromRecall"]; ok {
		var extra []string
		if err := json.Unmarshal(raw, &extra); err != nil {
			return fmt.Errorf("excludeFromRecall: %w", err)
		}
		cfg.ExcludeFromRecall = mergeGlobs(cfg.ExcludeFromRecall, extra)
	}
	if raw, ok := overlay["alwaysExclude"]; ok {
		var extra []string
		if err := json.Unmarshal(raw, &extra); err != nil {
			return fmt.Errorf("alwaysExclude: %w", err)
		}
		cfg.AlwaysExclude = mergeGlobs(cfg.AlwaysExclude, extra)
	}
	if raw, ok := overlay["reflect"]; ok {
		if err := json.Unmarshal(raw, &cfg.Reflect); err != nil {
			return fmt.Errorf("reflect: %w", err)
		}
	}
	if raw, ok := overlay["ingest"]; ok {
		if err := json.Unmarshal(raw, &cfg.Ingest); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}
	return nil
}

// mergeGlobs appends extra patterns not already present in base,
// normalizing slashes.
func mergeGlobs(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, g := range base {
		n := normalizeGlob(g)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, g := range extra {
		n := normalizeGlob(g)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func normalizeGlob(g string) string {
	return filepath.ToSlash(strings.TrimSpace(g))
}

// TypeOverride resolves a fileTypeDefaults label to a (ChunkType,
// confidence) pair, per §4.2's fixed table. The bool is false for unknown
// labels (no override).
func TypeOverride(label string) (store.ChunkType, float64, bool) {
	switch label {
	case "fact":
		return store.TypeFact, 1.0, true
	case "decision":
		return store.TypeDecision, 1.0, true
	case "preference", "pref":
		return store.TypePreference, 1.0, true
	case "confirmed":
		return store.TypeConfirmed, 1.0, true
	case "opinion":
		return store.TypeOpinion, 0.8, true
	case "inferred":
		return store.TypeInferred, 0.7, true
	case "outdated":
		return store.TypeOutdated, 0.3, true
	case "action_item":
		return store.TypeActionItem, 0.85, true
	default:
		return "", 0, false
	}
}
