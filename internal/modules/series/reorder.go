package series

import (
	"fmt"

	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
)

// indexUpdate is a single series_posts row whose index must change.
type indexUpdate struct {
	SeriesPostID string
	NewIndex     int
}

// computeReorder validates that orderedPostIDs is an exact permutation of
// the posts currently in the series and returns the minimal set of index
// writes that realizes the new order. Rows already at their target index
// produce no update.
func computeReorder(current []models.SeriesPostModel, orderedPostIDs []string) ([]indexUpdate, error) {
	if len(orderedPostIDs) != len(current) {
		return nil, fmt.Errorf("order list has %d entries, series has %d posts: %w",
			len(orderedPostIDs), len(current), apperr.ErrBadRequest)
	}

	byPostID := make(map[string]*models.SeriesPostModel, len(current))
	for i := range current {
		byPostID[current[i].PostID] = &current[i]
	}

	seen := make(map[string]bool, len(orderedPostIDs))
	var updates []indexUpdate
	for pos, postID := range orderedPostIDs {
		if seen[postID] {
			return nil, fmt.Errorf("duplicate post %s in order list: %w", postID, apperr.ErrBadRequest)
		}
		seen[postID] = true

		sp, ok := byPostID[postID]
		if !ok {
			return nil, fmt.Errorf("post %s is not in the series: %w", postID, apperr.ErrBadRequest)
		}

		if next := pos + 1; sp.Index != next {
			updates = append(updates, indexUpdate{SeriesPostID: sp.ID, NewIndex: next})
		}
	}
	return updates, nil
}
