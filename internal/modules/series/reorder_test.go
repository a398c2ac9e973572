package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
)

func seriesPosts(ids ...string) []models.SeriesPostModel {
	sps := make([]models.SeriesPostModel, len(ids))
	for i, id := range ids {
		sps[i] = models.SeriesPostModel{
			JoinBase: models.JoinBase{ID: "sp-" + id},
			PostID:   id,
			Index:    i + 1,
		}
	}
	return sps
}

func TestComputeReorder_NoChange(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3")

	updates, err := computeReorder(current, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestComputeReorder_FullReverse(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3")

	updates, err := computeReorder(current, []string{"p3", "p2", "p1"})
	require.NoError(t, err)
	// p2 keeps index 2; only the two ends move.
	require.Len(t, updates, 2)
	assert.Equal(t, indexUpdate{SeriesPostID: "sp-p3", NewIndex: 1}, updates[0])
	assert.Equal(t, indexUpdate{SeriesPostID: "sp-p1", NewIndex: 3}, updates[1])
}

func TestComputeReorder_SingleSwapIsMinimal(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3", "p4")

	updates, err := computeReorder(current, []string{"p1", "p3", "p2", "p4"})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	for _, u := range updates {
		assert.NotEqual(t, "sp-p1", u.SeriesPostID)
		assert.NotEqual(t, "sp-p4", u.SeriesPostID)
	}
}

func TestComputeReorder_MissingPost(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3")

	_, err := computeReorder(current, []string{"p1", "p2"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestComputeReorder_DuplicatePost(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3")

	_, err := computeReorder(current, []string{"p1", "p2", "p2"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestComputeReorder_ForeignPost(t *testing.T) {
	current := seriesPosts("p1", "p2", "p3")

	_, err := computeReorder(current, []string{"p1", "p2", "p9"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestComputeReorder_EmptySeries(t *testing.T) {
	updates, err := computeReorder(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, updates)
}
