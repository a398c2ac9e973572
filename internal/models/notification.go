package models

import "time"

// NotificationType enumerates the events a user can be notified about.
type NotificationType string

const (
	NotifyComment      NotificationType = "comment"
	NotifyCommentReply NotificationType = "comment_reply"
	NotifyPostLike     NotificationType = "post_like"
	NotifyFollower     NotificationType = "follower"
)

// NotificationModel is a poll-based notification row created on
// comment/like/follow events.
type NotificationModel struct {
	Base
	UserID   string                 `json:"user_id"  gorm:"index;not null"`
	ActorID  string                 `json:"actor_id" gorm:"index"`
	Type     NotificationType       `json:"type"     gorm:"index;not null"`
	Payload  map[string]interface{} `json:"payload"  gorm:"type:longtext;serializer:json"`
	IsRead   bool                   `json:"is_read"  gorm:"default:false;index"`
	ReadAt   *time.Time             `json:"read_at"`
	IsHidden bool                   `json:"is_hidden" gorm:"default:false"`
}

func (NotificationModel) TableName() string { return "notifications" }
