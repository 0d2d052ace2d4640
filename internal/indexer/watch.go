package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Watch re-indexes a single changed file whenever fsnotify reports a
// write or create event under workspace, instead of re-running a full
// workspace walk. This is additive enrichment, not required by any
// [MODULE] operation — no CLI surface depends on it.
func Watch(ctx context.Context, s *store.Store, workspace string, cfg config.Config, onIndexed func(relPath string, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(workspace)
	if err != nil {
		return fmt.Errorf("list watch dirs: %w", err)
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rel, err := filepath.Rel(workspace, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			err = IndexSingleFile(s, workspace, rel, cfg)
			if onIndexed != nil {
				onIndexed(rel, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onIndexed != nil {
				onIndexed("", fmt.Errorf("watch error: %w", err))
			}
		}
	}
}

// watchDirs returns every directory under workspace worth watching:
// the workspace root plus memory/ and ingest/ if present.
func watchDirs(workspace string) ([]string, error) {
	dirs := []string{workspace}
	for _, d := range []string{"memory", "ingest"} {
		full := filepath.Join(workspace, d)
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			dirs = append(dirs, full)
		}
	}
	return dirs, nil
}
