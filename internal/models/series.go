package models

// SeriesModel groups a user's posts into an ordered collection.
type SeriesModel struct {
	Base
	UserID      string `json:"user_id"     gorm:"index;index:idx_series_user_slug,unique;not null"`
	Name        string `json:"name"        gorm:"not null"`
	Description string `json:"description"`
	URLSlug     string `json:"url_slug"    gorm:"index:idx_series_user_slug,unique;not null"`
	Thumbnail   string `json:"thumbnail"`

	SeriesPosts []SeriesPostModel `json:"series_posts,omitempty" gorm:"foreignKey:SeriesID"`
}

func (SeriesModel) TableName() string { return "series" }

// SeriesPostModel places a post inside a series. Index is dense and
// 1-based; indices within one series stay a contiguous [1..N] range
// after any successful reorder. Membership rows delete physically so a
// removed post can rejoin the series.
type SeriesPostModel struct {
	JoinBase
	SeriesID string     `json:"fk_series_id" gorm:"column:fk_series_id;index;index:idx_series_posts_series_post,unique;not null"`
	PostID   string     `json:"fk_post_id"   gorm:"column:fk_post_id;index:idx_series_posts_series_post,unique;not null"`
	Index    int        `json:"index"        gorm:"not null"`
	Post     *PostModel `json:"post,omitempty" gorm:"foreignKey:PostID"`
}

func (SeriesPostModel) TableName() string { return "series_posts" }
