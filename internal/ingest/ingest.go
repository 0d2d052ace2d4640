// Package ingest covers the markdown-generation and manifest-sync half of
// the transcript/CSV ingestion contract (§4, Ingest row of the component
// table; §6 "ingest/.sync-manifest.json and ingest/*.md — ingest outputs").
// Transcript/CSV text parsing itself is out of scope per §1: callers supply
// already-parsed Records (one per transcript turn or CSV row), and this
// package is responsible only for rendering them as tagged markdown the
// Indexer can chunk, and for tracking which sources have already been
// synced so a re-run is a no-op when nothing changed.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/indexer"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Record is one already-parsed unit from a transcript or CSV source: a
// transcript turn, or a CSV row, reduced to the fields the markdown
// renderer needs. Parsing the original transcript/CSV text into Records is
// an external collaborator's job (§1).
type Record struct {
	// Speaker becomes an @entity mention on the rendered line when
	// non-empty (transcripts), or is read from the configured
	// ingest.entityColumn by the caller for CSV rows.
	Speaker string
	// Text is the row/turn's content.
	Text string
	// Tag is an optional chunk-type tag ([fact], [decision], ...); empty
	// renders an untagged bullet.
	Tag string
	// Entities are additional @mentions beyond Speaker.
	Entities []string
}

// ManifestEntry tracks one synced source so re-ingesting unchanged input is
// a no-op.
type ManifestEntry struct {
	ID         string `json:"id"`
	SourcePath string `json:"sourcePath"`
	OutputPath string `json:"outputPath"`
	Hash       string `json:"hash"`
	SyncedAt   string `json:"syncedAt"`
}

// Manifest is the decoded ingest/.sync-manifest.json contents.
type Manifest struct {
	Entries []ManifestEntry `json:"entries"`
}

func manifestPath(workspace string) string {
	return filepath.Join(workspace, "ingest", ".sync-manifest.json")
}

// LoadManifest reads ingest/.sync-manifest.json, returning an empty
// manifest if it does not yet exist.
func LoadManifest(workspace string) (Manifest, error) {
	raw, err := os.ReadFile(manifestPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("read sync manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse sync manifest: %w", err)
	}
	return m, nil
}

// SaveManifest writes the manifest back to ingest/.sync-manifest.json,
// creating the ingest directory if needed.
func SaveManifest(workspace string, m Manifest) error {
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].SourcePath < m.Entries[j].SourcePath })
	dir := filepath.Join(workspace, "ingest")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ingest dir: %w", err)
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sync manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath(workspace), raw, 0o644); err != nil {
		return fmt.Errorf("write sync manifest: %w", err)
	}
	return nil
}

func (m Manifest) find(sourcePath string) (ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.SourcePath == sourcePath {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

func (m *Manifest) upsert(entry ManifestEntry) {
	for i, e := range m.Entries {
		if e.SourcePath == entry.SourcePath {
			m.Entries[i] = entry
			return
		}
	}
	m.Entries = append(m.Entries, entry)
}

// recordsHash hashes a canonical rendering of records so content changes
// (not just mtimes, which the Indexer already tracks independently) are
// what trigger a resync.
func recordsHash(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Tag)
		b.WriteByte('\x1f')
		b.WriteString(r.Speaker)
		b.WriteByte('\x1f')
		b.WriteString(r.Text)
		b.WriteByte('\x1f')
		b.WriteString(strings.Join(r.Entities, ","))
		b.WriteByte('\x1e')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// RenderMarkdown renders records as a tagged markdown document under a
// single heading named after the source, one bullet per record, with
// entities carried as @mentions (§6 inline markup: tagged lines, @word and
// **bold** entities; here @mentions cover the entity side since transcript
// speakers are already discrete tokens, not prose needing bold-span
// markup).
func RenderMarkdown(sourceName string, records []Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sourceName)
	for _, r := range records {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		var mentions []string
		if r.Speaker != "" {
			mentions = append(mentions, "@"+sanitizeEntity(r.Speaker))
		}
		for _, e := range r.Entities {
			if e != "" {
				mentions = append(mentions, "@"+sanitizeEntity(e))
			}
		}
		line := text
		if len(mentions) > 0 {
			line = strings.Join(mentions, " ") + ": " + text
		}
		if r.Tag != "" {
			fmt.Fprintf(&b, "- [%s] %s\n", r.Tag, line)
		} else {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func sanitizeEntity(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// DiscoverSources lists files under the workspace's configured
// ingest.sourceDir (raw transcripts/CSVs awaiting parsing by an external
// collaborator, per §1) so a caller can decide what to parse and Sync
// next. Returns paths relative to workspace, sorted.
func DiscoverSources(workspace string, cfg config.Config) ([]string, error) {
	dir := cfg.Ingest.SourceDir
	if dir == "" {
		dir = "ingest"
	}
	absDir := filepath.Join(workspace, dir)
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".csv" && ext != ".txt" && ext != ".json" && ext != ".jsonl" {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Result is Sync's return shape.
type Result struct {
	OutputPath string
	Written    bool
	Skipped    bool
	Indexed    bool
}

// Sync renders records to ingest/<sourceName>.md, skipping the write when
// the manifest shows the same content was already synced, then — when
// cfg.Ingest.AutoSync is set — indexes the resulting file so it is
// immediately recallable. sourceName becomes both the output file's
// basename (sourceName + ".md") and its heading.
func Sync(s *store.Store, cfg config.Config, workspace, sourcePath, sourceName string, records []Record) (Result, error) {
	hash := recordsHash(records)

	m, err := LoadManifest(workspace)
	if err != nil {
		return Result{}, err
	}

	outRel := filepath.Join("ingest", sourceName+".md")
	if existing, ok := m.find(sourcePath); ok && existing.Hash == hash && existing.OutputPath == outRel {
		return Result{OutputPath: outRel, Skipped: true}, nil
	}

	outAbs := filepath.Join(workspace, outRel)
	if err := os.MkdirAll(filepath.Dir(outAbs), 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", filepath.Dir(outRel), err)
	}
	md := RenderMarkdown(sourceName, records)
	if err := os.WriteFile(outAbs, []byte(md), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", outRel, err)
	}

	id := uuid.NewString()
	if existing, ok := m.find(sourcePath); ok {
		id = existing.ID
	}
	m.upsert(ManifestEntry{
		ID:         id,
		SourcePath: sourcePath,
		OutputPath: outRel,
		Hash:       hash,
		SyncedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err := SaveManifest(workspace, m); err != nil {
		return Result{}, err
	}

	result := Result{OutputPath: outRel, Written: true}
	if s != nil && cfg.Ingest.AutoSync {
		if err := indexer.IndexSingleFile(s, workspace, outRel, cfg); err != nil {
			return result, fmt.Errorf("index %s: %w", outRel, err)
		}
		result.Indexed = true
	}
	return result, nil
}
