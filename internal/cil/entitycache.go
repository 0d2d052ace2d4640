package cil

import (
	"strings"
	"sync"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/entities"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

const entityCacheTTL = 60 * time.Second

type entityCache struct {
	mu      sync.Mutex
	labels  []string
	builtAt time.Time
}

var sharedEntityCache entityCache

// InvalidateEntityCache forces the next call to rebuild the process-wide
// entity label cache instead of reusing one still within its TTL.
func InvalidateEntityCache() {
	sharedEntityCache.mu.Lock()
	defer sharedEntityCache.mu.Unlock()
	sharedEntityCache.builtAt = time.Time{}
	sharedEntityCache.labels = nil
}

// labelsAt returns the cached entity labels, rebuilding at most once per
// entityCacheTTL relative to now (§4.6). A rebuild failure keeps serving
// the stale cache rather than erroring the whole call.
func (c *entityCache) labelsAt(s *store.Store, now time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.builtAt.IsZero() && now.Sub(c.builtAt) < entityCacheTTL {
		return c.labels, nil
	}
	labels, err := s.DistinctEntityLabels()
	if err != nil {
		return c.labels, err
	}
	c.labels = labels
	c.builtAt = now
	return c.labels, nil
}

// matchedEntities finds known entity labels appearing as substrings in
// haystack (message plus conversation context, lowercased), then expands
// the set one hop through the co-occurrence graph (§4.6).
func matchedEntities(s *store.Store, labels []string, haystack string) (map[string]bool, error) {
	lower := strings.ToLower(haystack)
	matched := map[string]bool{}
	for _, label := range labels {
		if strings.Contains(lower, label) {
			matched[label] = true
		}
	}
	if len(matched) == 0 {
		return matched, nil
	}
	return entities.ExpandWithCooccurrence(s, matched, 2)
}
