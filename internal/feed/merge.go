// Package feed holds the pagination contract shared with feed consumers.
package feed

import "github.com/shelfex/backend/internal/models"

// MergePosts appends a fetched page to an already-loaded list, de-duplicating
// by post id: loaded items keep their positions, and only not-yet-seen
// fetched items are appended, in fetched order. A post inserted ahead of the
// cursor between two fetches shifts the page boundary and makes the pages
// overlap; merging this way absorbs the overlap without duplicates and
// without reshuffling what is already rendered.
func MergePosts(loaded, fetched []models.Post) []models.Post {
	seen := make(map[string]struct{}, len(loaded))
	for _, p := range loaded {
		seen[p.ID.Hex()] = struct{}{}
	}

	merged := make([]models.Post, len(loaded), len(loaded)+len(fetched))
	copy(merged, loaded)
	for _, p := range fetched {
		if _, ok := seen[p.ID.Hex()]; ok {
			continue
		}
		seen[p.ID.Hex()] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}
