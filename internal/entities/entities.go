// Package entities builds and queries the entity co-occurrence index
// used by Recall's and CIL's entity-match expansion (§4.8).
package entities

import (
	"strings"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// BuildIndex scans every non-stale chunk, derives the (lowercased,
// @-stripped) entity set per chunk, tracks chunk ids / last-seen /
// co-occurrence counts per entity, and replaces entity_index atomically
// unless dryRun is set (in which case the computed records are returned
// without being persisted).
func BuildIndex(s *store.Store, dryRun bool) ([]store.EntityRecord, error) {
	chunks, err := s.NonStaleChunks()
	if err != nil {
		return nil, err
	}

	type accum struct {
		chunkIDs map[int64]bool
		co       map[string]int
		lastSeen time.Time
	}
	byEntity := map[string]*accum{}

	for _, c := range chunks {
		labels := normalizeLabels(c.Entities)
		if len(labels) == 0 {
			continue
		}
		for _, e := range labels {
			a, ok := byEntity[e]
			if !ok {
				a = &accum{chunkIDs: map[int64]bool{}, co: map[string]int{}}
				byEntity[e] = a
			}
			a.chunkIDs[c.ID] = true
			if a.lastSeen.IsZero() || c.CreatedAt.After(a.lastSeen) {
				a.lastSeen = c.CreatedAt
			}
			for _, other := range labels {
				if other == e {
					continue
				}
				a.co[other]++
			}
		}
	}

	records := make([]store.EntityRecord, 0, len(byEntity))
	for entity, a := range byEntity {
		ids := make([]int64, 0, len(a.chunkIDs))
		for id := range a.chunkIDs {
			ids = append(ids, id)
		}
		ls := a.lastSeen
		records = append(records, store.EntityRecord{
			Entity:       entity,
			ChunkIDs:     ids,
			CoEntities:   a.co,
			MentionCount: len(a.chunkIDs),
			LastSeen:     &ls,
		})
	}

	if dryRun {
		return records, nil
	}
	if err := s.ReplaceEntityIndex(records); err != nil {
		return nil, err
	}
	return records, nil
}

// normalizeLabels lowercases and strips a leading @ from each entity,
// dropping labels shorter than 2 characters, per §4.8.
func normalizeLabels(raw []string) []string {
	var out []string
	for _, e := range raw {
		label := strings.ToLower(strings.TrimPrefix(e, "@"))
		if len(label) < 2 {
			continue
		}
		out = append(out, label)
	}
	return out
}

// GetEntity returns a single entity record, or nil if unknown.
func GetEntity(s *store.Store, name string) (*store.EntityRecord, error) {
	return s.GetEntity(strings.ToLower(strings.TrimPrefix(name, "@")))
}

// GetRelatedEntities returns entities that co-occurred with name, sorted
// by co-occurrence count descending.
func GetRelatedEntities(s *store.Store, name string) ([]string, error) {
	return s.GetRelatedEntities(strings.ToLower(strings.TrimPrefix(name, "@")))
}

// ListEntities returns up to limit entity records ordered by mention
// count descending.
func ListEntities(s *store.Store, limit int) ([]store.EntityRecord, error) {
	return s.ListEntities(limit)
}

// ExpandWithCooccurrence performs the one-hop entity expansion used by
// CIL's entity match set (§4.6): for every entity already in set, pull in
// co-occurring entities whose count meets coThreshold.
func ExpandWithCooccurrence(s *store.Store, set map[string]bool, coThreshold int) (map[string]bool, error) {
	if coThreshold <= 0 {
		coThreshold = 2
	}
	out := map[string]bool{}
	for e := range set {
		out[e] = true
	}
	for e := range set {
		rec, err := s.GetEntity(e)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		for other, count := range rec.CoEntities {
			if count >= coThreshold {
				out[other] = true
			}
		}
	}
	return out, nil
}
