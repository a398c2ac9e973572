package models

// TagModel is a post tag. NameFiltered is the URL-safe lowercase projection
// of Name used for lookups; collisions are tolerated and resolved by first
// match. A tag with IsAlias set must carry exactly one TagAliasModel edge
// pointing at its canonical tag.
type TagModel struct {
	Base
	Name         string `json:"name"          gorm:"not null"`
	NameFiltered string `json:"name_filtered" gorm:"index;not null"`
	IsAlias      bool   `json:"is_alias"      gorm:"default:false;index"`
	Description  string `json:"description"`
	Thumbnail    string `json:"thumbnail"`
}

func (TagModel) TableName() string { return "tags" }

// TagAliasModel is a directed edge from an alias tag to its canonical tag.
// Chains are exactly one hop: AliasTagID must reference a non-alias tag.
type TagAliasModel struct {
	Base
	TagID      string `json:"fk_tag_id"       gorm:"column:fk_tag_id;uniqueIndex;not null"`
	AliasTagID string `json:"fk_alias_tag_id" gorm:"column:fk_alias_tag_id;index;not null"`
}

func (TagAliasModel) TableName() string { return "tag_alias" }

// PostTagModel is the posts<->tags join row, queried directly by the
// aggregate counter and trending listing. Rows delete physically so a
// removed tag can be re-added without tripping the unique index.
type PostTagModel struct {
	JoinBase
	FkPostID string `json:"fk_post_id" gorm:"column:fk_post_id;index:idx_posts_tags_post_tag,unique;not null"`
	FkTagID  string `json:"fk_tag_id"  gorm:"column:fk_tag_id;index;index:idx_posts_tags_post_tag,unique;not null"`
}

func (PostTagModel) TableName() string { return "posts_tags" }
