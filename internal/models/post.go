package models

import "time"

// PostModel is a published or draft post.
// ReleasedAt drives the public recency ordering; IsTemp marks unsaved drafts
// and IsPrivate hides a post from everyone but its owner.
type PostModel struct {
	Base
	UserID           string     `json:"user_id"           gorm:"index;index:idx_posts_user_slug,unique;not null"`
	User             *UserModel `json:"user,omitempty"    gorm:"foreignKey:UserID"`
	Title            string     `json:"title"             gorm:"not null"`
	Body             string     `json:"body"              gorm:"type:longtext"`
	ShortDescription string     `json:"short_description"`
	Thumbnail        string     `json:"thumbnail"`
	URLSlug          string     `json:"url_slug"          gorm:"index:idx_posts_user_slug,unique;not null"`
	IsPrivate        bool       `json:"is_private"        gorm:"default:false;index"`
	IsTemp           bool       `json:"is_temp"           gorm:"default:false;index"`
	ReleasedAt       time.Time  `json:"released_at"       gorm:"index;not null"`
	ReadCount        int        `json:"read_count"        gorm:"default:0"`
	LikeCount        int        `json:"like_count"        gorm:"default:0"`

	Tags []TagModel `json:"tags,omitempty" gorm:"many2many:posts_tags;joinForeignKey:FkPostID;joinReferences:FkTagID"`
}

func (PostModel) TableName() string { return "posts" }

// PostLikeModel records a per-user like on a post.
// Likes are removed physically so re-liking never collides with the
// unique index.
type PostLikeModel struct {
	JoinBase
	PostID string `json:"post_id" gorm:"index:idx_post_likes_post_user,unique;not null"`
	UserID string `json:"user_id" gorm:"index:idx_post_likes_post_user,unique;not null"`
}

func (PostLikeModel) TableName() string { return "post_likes" }

// PostReadModel is an append-only read log used by the trending aggregation.
type PostReadModel struct {
	Base
	PostID string `json:"post_id" gorm:"index;not null"`
	UserID string `json:"user_id" gorm:"index"`
	IPHash string `json:"-"       gorm:"index"`
}

func (PostReadModel) TableName() string { return "post_reads" }
