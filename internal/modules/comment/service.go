package comment

import (
	"errors"
	"fmt"
	"time"

	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/modules/notification"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	notify *notification.Service
}

func NewService(db *gorm.DB, log *zap.Logger, notify *notification.Service) *Service {
	return &Service{db: db, log: log, notify: notify}
}

func (s *Service) Create(userID string, dto *CreateCommentDTO) (*models.CommentModel, error) {
	var post models.PostModel
	if err := s.db.Select("id, user_id, title, url_slug").First(&post, "id = ?", dto.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	level := 0
	var parent *models.CommentModel
	if dto.ParentID != nil {
		var p models.CommentModel
		if err := s.db.First(&p, "id = ?", *dto.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrNotFound
			}
			return nil, err
		}
		if p.PostID != post.ID {
			return nil, fmt.Errorf("parent comment belongs to another post: %w", apperr.ErrBadRequest)
		}
		if p.Level >= maxLevel {
			return nil, fmt.Errorf("comment thread too deep: %w", apperr.ErrBadRequest)
		}
		parent = &p
		level = p.Level + 1
	}

	comment := models.CommentModel{
		PostID:   post.ID,
		UserID:   userID,
		ParentID: dto.ParentID,
		Text:     dto.Text,
		Level:    level,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if parent != nil {
			return tx.Model(&models.CommentModel{}).
				Where("id = ?", parent.ID).
				Update("replies_count", gorm.Expr("replies_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"post_id":    post.ID,
		"comment_id": comment.ID,
		"url_slug":   post.URLSlug,
		"text":       dto.Text,
	}
	if parent != nil {
		s.notify.Notify(parent.UserID, userID, models.NotifyCommentReply, payload)
	} else {
		s.notify.Notify(post.UserID, userID, models.NotifyComment, payload)
	}
	return &comment, nil
}

// ListByPost returns the root comments of a post with replies nested, in
// chronological order. Deleted comments stay in place with blanked text so
// replies keep their context.
func (s *Service) ListByPost(postID string) ([]models.CommentModel, error) {
	var comments []models.CommentModel
	err := s.db.Preload("User").
		Preload("Children", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		Preload("Children.User").
		Preload("Children.Children", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		Preload("Children.Children.User").
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	blankDeleted(comments)
	return comments, nil
}

func blankDeleted(comments []models.CommentModel) {
	for i := range comments {
		if comments[i].Deleted {
			comments[i].Text = ""
			comments[i].User = nil
		}
		blankDeleted(comments[i].Children)
	}
}

func (s *Service) Update(userID, commentID string, dto *UpdateCommentDTO) (*models.CommentModel, error) {
	comment, err := s.getOwned(commentID, userID)
	if err != nil {
		return nil, err
	}
	if comment.Deleted {
		return nil, apperr.ErrNotFound
	}

	now := time.Now()
	err = s.db.Model(comment).Updates(map[string]interface{}{
		"text":      dto.Text,
		"edited_at": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete marks a comment deleted without removing the row, so descendant
// replies stay attached to the thread.
func (s *Service) Delete(userID, commentID string) error {
	comment, err := s.getOwned(commentID, userID)
	if err != nil {
		return err
	}
	return s.db.Model(comment).Update("deleted", true).Error
}

func (s *Service) getOwned(commentID, userID string) (*models.CommentModel, error) {
	var comment models.CommentModel
	if err := s.db.First(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if comment.UserID != userID {
		return nil, apperr.ErrNoPermission
	}
	return &comment, nil
}
