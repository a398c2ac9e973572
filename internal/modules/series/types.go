package series

// CreateSeriesDTO creates a new series for the authenticated user.
type CreateSeriesDTO struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	URLSlug     string `json:"url_slug"`
}

// UpdateSeriesDTO updates series metadata. Nil fields are left untouched.
type UpdateSeriesDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
	URLSlug     *string `json:"url_slug"`
}

// AppendPostDTO appends a post at the end of a series.
type AppendPostDTO struct {
	PostID string `json:"post_id" binding:"required"`
}

// ReorderDTO replaces the series order with the given post id sequence.
// The list must be an exact permutation of the posts in the series.
type ReorderDTO struct {
	PostIDs []string `json:"post_ids" binding:"required"`
}

// SeriesItem is a series row decorated with its post count, used by the
// per-user series listing.
type SeriesItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URLSlug     string `json:"url_slug"`
	Thumbnail   string `json:"thumbnail"`
	PostsCount  int64  `json:"posts_count" gorm:"column:posts_count"`
}
