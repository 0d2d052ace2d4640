package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, warning := Load(dir)
	if warning != "" {
		t.Errorf("expected no warning for missing config, got %q", warning)
	}
	if cfg.Reflect.HalfLifeDays != 365 {
		t.Errorf("expected default half-life 365, got %v", cfg.Reflect.HalfLifeDays)
	}
}

func TestLoadMergesOverlay(t *testing.T) {
	dir := t.TempDir()
	memDir := filepath.Join(dir, ".memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{
		"owner": "jane",
		"reflect": { "halfLifeDays": 180 },
		"fileWeights": { "MEMORY.md": 2.0 }
	}`
	if err := os.WriteFile(filepath.Join(memDir, "config.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, warning := Load(dir)
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if cfg.Owner != "jane" {
		t.Errorf("expected owner jane, got %q", cfg.Owner)
	}
	if cfg.Reflect.HalfLifeDays != 180 {
		t.Errorf("expected half-life 180, got %v", cfg.Reflect.HalfLifeDays)
	}
	if cfg.Reflect.DecayRate != 1.0 {
		t.Errorf("expected untouched default decay rate 1.0, got %v", cfg.Reflect.DecayRate)
	}
	if w, ok := cfg.ResolveFileWeight("MEMORY.md"); !ok || w != 2.0 {
		t.Errorf("expected MEMORY.md weight override 2.0, got %v (%v)", w, ok)
	}
}

func TestLoadFallsBackOnMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	memDir := filepath.Join(dir, ".memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(memDir, "config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, warning := Load(dir)
	if warning == "" {
		t.Fatal("expected a warning for malformed config.json")
	}
	if cfg.Reflect.HalfLifeDays != 365 {
		t.Errorf("expected fallback to defaults, got half-life %v", cfg.Reflect.HalfLifeDays)
	}
}

func TestResolveFileTypeLongestPatternWins(t *testing.T) {
	cfg := Defaults()
	cfg.FileTypeDefaults["memory/**/*.md"] = "fact"
	cfg.FileTypeDefaults["memory/decisions/**/*.md"] = "decision"

	got, ok := cfg.ResolveFileType("memory/decisions/2026-01-01.md")
	if !ok || got != "decision" {
		t.Errorf("expected longest pattern 'decision' to win, got %q (%v)", got, ok)
	}
}

func TestResolveFileTypeExactPathBeatsGlob(t *testing.T) {
	cfg := Defaults()
	cfg.FileTypeDefaults["memory/**/*.md"] = "fact"
	cfg.FileTypeDefaults["memory/special.md"] = "decision"

	got, ok := cfg.ResolveFileType("memory/special.md")
	if !ok || got != "decision" {
		t.Errorf("expected exact path to win, got %q (%v)", got, ok)
	}
}

func TestTypeOverride(t *testing.T) {
	cases := []struct {
		label      string
		wantOK     bool
		wantConf   float64
	}{
		{"fact", true, 1.0},
		{"opinion", true, 0.8},
		{"inferred", true, 0.7},
		{"outdated", true, 0.3},
		{"action_item", true, 0.85},
		{"nonsense", false, 0},
	}
	for _, c := range cases {
		_, conf, ok := TypeOverride(c.label)
		if ok != c.wantOK {
			t.Errorf("TypeOverride(%q) ok = %v, want %v", c.label, ok, c.wantOK)
		}
		if ok && conf != c.wantConf {
			t.Errorf("TypeOverride(%q) confidence = %v, want %v", c.label, conf, c.wantConf)
		}
	}
}
