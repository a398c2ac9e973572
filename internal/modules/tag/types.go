package tag

import "time"

// Sort modes for the tag listing.
const (
	SortAlphabetical = "alphabetical"
	SortTrending     = "trending"
)

// Page size defaults per listing.
const (
	DefaultListLimit     = 20
	DefaultTrendingLimit = 60
	DefaultPostsLimit    = 20
	MaxLimit             = 100
)

// TagItem is a tag row decorated with its aggregated public post count.
type TagItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	CreatedAt   time.Time `json:"created_at"`
	PostsCount  int64     `json:"posts_count" gorm:"column:posts_count"`
}

// MergeDTO converts the source tag into an alias of the target tag.
type MergeDTO struct {
	SourceID string `json:"source_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
}
