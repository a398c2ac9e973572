package models

import "time"

// UserModel represents a registered writer.
type UserModel struct {
	Base
	Username    string `json:"username"     gorm:"uniqueIndex;not null"`
	Email       string `json:"email"        gorm:"uniqueIndex;not null"`
	Password    string `json:"-"            gorm:"not null"`
	DisplayName string `json:"display_name"`
	ShortBio    string `json:"short_bio"`
	Thumbnail   string `json:"thumbnail"`
	About       string `json:"about"        gorm:"type:longtext"`
	IsCertified bool   `json:"is_certified" gorm:"default:false"`

	SocialAccounts []SocialAccountModel `json:"social_accounts,omitempty" gorm:"foreignKey:UserID"`
}

func (UserModel) TableName() string { return "users" }

// SocialAccountModel links an OAuth identity (github/google) to a user.
type SocialAccountModel struct {
	Base
	UserID      string     `json:"-"            gorm:"index;not null"`
	Provider    string     `json:"provider"     gorm:"index;not null"` // github | google
	ProviderUID string     `json:"provider_uid" gorm:"index;not null"`
	AccessToken string     `json:"-"            gorm:"type:text"`
	LastUsed    *time.Time `json:"last_used"`
}

func (SocialAccountModel) TableName() string { return "social_accounts" }

// UserSession backs refresh tokens for device/session management.
type UserSession struct {
	Base
	UserID    string     `json:"user_id"    gorm:"index;not null"`
	IP        string     `json:"ip"`
	UA        string     `json:"ua"         gorm:"type:text"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	RevokedAt *time.Time `json:"revoked_at" gorm:"index"`
}

func (UserSession) TableName() string { return "user_sessions" }
