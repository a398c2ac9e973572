package models

import "time"

// CommentModel is a comment on a post. Replies nest one level through
// ParentID. Deleted comments keep their row so the thread shape survives;
// the text is blanked at read time.
type CommentModel struct {
	Base
	PostID       string         `json:"post_id"   gorm:"index;not null"`
	UserID       string         `json:"user_id"   gorm:"index;not null"`
	User         *UserModel     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	ParentID     *string        `json:"parent_id" gorm:"index"`
	Children     []CommentModel `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Text         string         `json:"text"      gorm:"type:text;not null"`
	Level        int            `json:"level"     gorm:"default:0"`
	Deleted      bool           `json:"deleted"   gorm:"default:false"`
	RepliesCount int            `json:"replies_count" gorm:"default:0"`
	EditedAt     *time.Time     `json:"edited_at"`
}

func (CommentModel) TableName() string { return "comments" }
