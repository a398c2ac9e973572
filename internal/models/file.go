package models

// FileModel tracks an uploaded image in object storage.
type FileModel struct {
	Base
	UserID      string `json:"user_id"      gorm:"index;not null"`
	Key         string `json:"key"          gorm:"index;not null"`
	URL         string `json:"url"          gorm:"not null"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	RefType     string `json:"ref_type"     gorm:"index"` // post | profile
	RefID       string `json:"ref_id"       gorm:"index"`
}

func (FileModel) TableName() string { return "files" }
