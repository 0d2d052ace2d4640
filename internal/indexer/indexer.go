package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Result reports the outcome of an index_workspace run (§4.3).
type Result struct {
	Indexed int
	Skipped int
	Cleaned int
	Errors  map[string]string
}

// IndexWorkspace discovers files, skips any whose mtime is unchanged
// unless force is set, chunks and classifies each, replaces prior chunks
// per file in a transaction, then deletes chunks for any path no longer
// discovered (orphan cleanup) (§4.3).
func IndexWorkspace(s *store.Store, workspace string, force bool, cfg config.Config) (Result, error) {
	res := Result{Errors: map[string]string{}}

	paths, err := DiscoverFiles(workspace, cfg.Include, cfg.IncludeGlobs)
	if err != nil {
		return res, fmt.Errorf("discover files: %w", err)
	}

	discovered := map[string]bool{}
	for _, rel := range paths {
		discovered[rel] = true

		n, skipped, err := indexFile(s, workspace, rel, force, cfg)
		if err != nil {
			res.Errors[rel] = err.Error()
			continue
		}
		if skipped {
			res.Skipped++
		} else {
			res.Indexed += n
		}
	}

	existing, err := s.GetAllFilePaths()
	if err != nil {
		return res, fmt.Errorf("list existing file paths: %w", err)
	}
	for _, p := range existing {
		if !discovered[p] {
			if err := s.DeleteFileChunks(p); err != nil {
				res.Errors[p] = err.Error()
				continue
			}
			res.Cleaned++
		}
	}

	return res, nil
}

// IndexSingleFile performs one file's chunk-classify-replace steps, for
// use after a remember append (§4.3). It always re-indexes the file: the
// unchanged-mtime skip check is bypassed.
func IndexSingleFile(s *store.Store, workspace, relPath string, cfg config.Config) error {
	_, _, err := indexFile(s, workspace, relPath, true, cfg)
	return err
}

// indexFile returns (chunksWritten, skipped, err).
func indexFile(s *store.Store, workspace, relPath string, force bool, cfg config.Config) (int, bool, error) {
	absPath := filepath.Join(workspace, relPath)
	mtimeMs, err := statMTimeMs(absPath)
	if err != nil {
		return 0, false, fmt.Errorf("stat %s: %w", relPath, err)
	}

	if !force {
		meta, err := s.GetFileMeta(relPath)
		if err != nil {
			return 0, false, fmt.Errorf("get file meta for %s: %w", relPath, err)
		}
		if meta != nil && meta.MTimeMs == mtimeMs {
			return 0, true, nil
		}
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", relPath, err)
	}
	text := string(raw)

	rawChunks := ChunkMarkdown(text)
	facts := ExtractTaggedFacts(text)

	typeLabel, hasTypeDefault := cfg.ResolveFileType(relPath)
	var baseType store.ChunkType
	var baseConf float64
	if hasTypeDefault {
		if ct, conf, ok := config.TypeOverride(typeLabel); ok {
			baseType, baseConf = ct, conf
		}
	}

	dateFromPath := extractDateFromPath(relPath)
	var createdAt time.Time
	if dateFromPath != "" {
		if t, err := time.Parse("2006-01-02", dateFromPath); err == nil {
			createdAt = t
		}
	}

	newChunks := make([]store.NewChunk, 0, len(rawChunks))
	for _, rc := range rawChunks {
		ct := baseType
		conf := baseConf
		if ct == "" {
			ct = store.TypeRaw
			conf = store.DefaultConfidence(store.TypeRaw)
		}
		if headingType, headingConf, ok := ClassifyHeading(rc.Heading); ok {
			ct = headingType
			conf = headingConf
		}
		if fact, ok := HighestConfidenceFactInSpan(facts, rc.LineStart, rc.LineEnd); ok {
			ct = fact.ChunkType
			conf = fact.Confidence
		}
		newChunks = append(newChunks, store.NewChunk{
			Heading:    rc.Heading,
			Content:    rc.Content,
			LineStart:  rc.LineStart,
			LineEnd:    rc.LineEnd,
			Entities:   ExtractEntities(rc.Content),
			ChunkType:  ct,
			Confidence: conf,
			CreatedAt:  createdAt,
		})
	}

	if err := s.InsertChunks(relPath, mtimeMs, newChunks); err != nil {
		return 0, false, fmt.Errorf("insert chunks for %s: %w", relPath, err)
	}
	return len(newChunks), false, nil
}
