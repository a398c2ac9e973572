package notification

import (
	"errors"
	"time"

	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/pagination"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service creates and lists per-user notifications. Creation is best-effort:
// callers fire it after their own transaction commits and a failure only
// logs, it never fails the triggering action.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Notify writes a notification row. Self-notifications are dropped.
func (s *Service) Notify(userID, actorID string, typ models.NotificationType, payload map[string]interface{}) {
	if userID == "" || userID == actorID {
		return
	}
	n := models.NotificationModel{
		UserID:  userID,
		ActorID: actorID,
		Type:    typ,
		Payload: payload,
	}
	if err := s.db.Create(&n).Error; err != nil {
		s.log.Error("notification write failed",
			zap.String("user_id", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

func (s *Service) List(userID string, q pagination.Query, unreadOnly bool) ([]models.NotificationModel, response.Pagination, error) {
	tx := s.db.Model(&models.NotificationModel{}).
		Where("user_id = ? AND is_hidden = FALSE", userID).
		Order("created_at DESC")
	if unreadOnly {
		tx = tx.Where("is_read = FALSE")
	}

	var items []models.NotificationModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) UnreadCount(userID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.NotificationModel{}).
		Where("user_id = ? AND is_read = FALSE AND is_hidden = FALSE", userID).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification as read. Only the owner may do so.
func (s *Service) MarkRead(userID, notificationID string) error {
	var n models.NotificationModel
	if err := s.db.First(&n, "id = ?", notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	if n.UserID != userID {
		return apperr.ErrNoPermission
	}
	if n.IsRead {
		return nil
	}
	now := time.Now()
	return s.db.Model(&n).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": &now,
	}).Error
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(userID string) error {
	now := time.Now()
	return s.db.Model(&models.NotificationModel{}).
		Where("user_id = ? AND is_read = FALSE", userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": &now,
		}).Error
}
