package post

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/modules/notification"
	"github.com/veloghq/velog-server/internal/modules/search"
	"github.com/veloghq/velog-server/internal/modules/tag"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	redisc "github.com/veloghq/velog-server/internal/pkg/redis"
	"github.com/veloghq/velog-server/internal/pkg/slack"
	"github.com/veloghq/velog-server/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns the post lifecycle: saving, visibility, tag sync, likes and
// the read counter.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	rc     *redisc.Client
	tags   *tag.Service
	notify *notification.Service
	search *search.Service
	slack  *slack.Service
	webURL string
}

func NewService(
	db *gorm.DB,
	log *zap.Logger,
	rc *redisc.Client,
	tags *tag.Service,
	notify *notification.Service,
	searchSvc *search.Service,
	slackSvc *slack.Service,
	webURL string,
) *Service {
	return &Service{
		db:     db,
		log:    log,
		rc:     rc,
		tags:   tags,
		notify: notify,
		search: searchSvc,
		slack:  slackSvc,
		webURL: webURL,
	}
}

func (s *Service) Create(userID string, dto *CreatePostDTO) (*models.PostModel, error) {
	var user models.UserModel
	if err := s.db.Select("id, username").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	var post models.PostModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		urlSlug, err := s.generateSlug(tx, userID, dto.Title, dto.URLSlug)
		if err != nil {
			return err
		}

		post = models.PostModel{
			UserID:           userID,
			Title:            dto.Title,
			Body:             dto.Body,
			ShortDescription: dto.ShortDescription,
			Thumbnail:        dto.Thumbnail,
			URLSlug:          urlSlug,
			IsPrivate:        dto.IsPrivate,
			IsTemp:           dto.IsTemp,
			ReleasedAt:       time.Now(),
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return s.syncTags(tx, &post, dto.Tags)
	})
	if err != nil {
		return nil, err
	}

	s.search.IndexPost(&post, user.Username)
	if !post.IsTemp && !post.IsPrivate {
		url := fmt.Sprintf("%s/@%s/%s", s.webURL, user.Username, post.URLSlug)
		if err := s.slack.NotifyNewPost(user.Username, post.Title, url); err != nil {
			s.log.Warn("slack notify failed", zap.Error(err))
		}
	}
	return &post, nil
}

func (s *Service) Update(userID, postID string, dto *UpdatePostDTO) (*models.PostModel, error) {
	post, err := s.getOwned(postID, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if dto.Title != nil {
			updates["title"] = *dto.Title
		}
		if dto.Body != nil {
			updates["body"] = *dto.Body
		}
		if dto.ShortDescription != nil {
			updates["short_description"] = *dto.ShortDescription
		}
		if dto.Thumbnail != nil {
			updates["thumbnail"] = *dto.Thumbnail
		}
		if dto.URLSlug != nil && *dto.URLSlug != post.URLSlug {
			urlSlug, err := s.generateSlug(tx, userID, post.Title, *dto.URLSlug)
			if err != nil {
				return err
			}
			updates["url_slug"] = urlSlug
		}
		if dto.IsPrivate != nil {
			updates["is_private"] = *dto.IsPrivate
		}
		if dto.IsTemp != nil {
			updates["is_temp"] = *dto.IsTemp
			// First publish stamps the release time; later edits keep it.
			if post.IsTemp && !*dto.IsTemp {
				updates["released_at"] = time.Now()
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(post).Updates(updates).Error; err != nil {
				return err
			}
		}
		if dto.Tags != nil {
			return s.syncTags(tx, post, *dto.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var username string
	if post.User != nil {
		username = post.User.Username
	}
	s.search.IndexPost(post, username)
	return post, nil
}

// Delete soft-deletes a post and drops its tag and series memberships.
// Series indices are compacted so the dense ordering survives.
func (s *Service) Delete(userID, postID string) error {
	post, err := s.getOwned(postID, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fk_post_id = ?", post.ID).
			Delete(&models.PostTagModel{}).Error; err != nil {
			return err
		}

		var memberships []models.SeriesPostModel
		if err := tx.Where("fk_post_id = ?", post.ID).Find(&memberships).Error; err != nil {
			return err
		}
		for _, m := range memberships {
			if err := tx.Delete(&models.SeriesPostModel{}, "id = ?", m.ID).Error; err != nil {
				return err
			}
			if err := compactSeriesIndices(tx, m.SeriesID); err != nil {
				return err
			}
		}

		return tx.Delete(post).Error
	})
	if err != nil {
		return err
	}

	s.search.RemovePost(post.ID)
	return nil
}

func compactSeriesIndices(tx *gorm.DB, seriesID string) error {
	var remaining []models.SeriesPostModel
	if err := tx.Where("fk_series_id = ?", seriesID).
		Order("`index` ASC").
		Find(&remaining).Error; err != nil {
		return err
	}
	for i := range remaining {
		if remaining[i].Index == i+1 {
			continue
		}
		if err := tx.Model(&models.SeriesPostModel{}).
			Where("id = ?", remaining[i].ID).
			Update("index", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByUsernameAndSlug loads a post for reading. Private and temp posts are
// visible to their owner only; everyone else sees NotFound rather than a
// permission error, so the existence of a private post does not leak.
func (s *Service) GetByUsernameAndSlug(username, urlSlug, requesterID string) (*models.PostModel, error) {
	var user models.UserModel
	if err := s.db.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	var post models.PostModel
	err := s.db.Preload("User").Preload("Tags").
		Where("user_id = ? AND url_slug = ?", user.ID, urlSlug).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if (post.IsPrivate || post.IsTemp) && post.UserID != requesterID {
		return nil, apperr.ErrNotFound
	}
	return &post, nil
}

// ListRecent pages public posts by recency, ordered (released_at DESC,
// id DESC).
func (s *Service) ListRecent(cursor string, limit int) ([]models.PostModel, error) {
	limit = clampLimit(limit)

	tx := s.db.Preload("User").Preload("Tags").
		Where("is_private = FALSE AND is_temp = FALSE")

	tx, err := s.applyCursor(tx, cursor)
	if err != nil {
		return nil, err
	}

	var posts []models.PostModel
	err = tx.Order("released_at DESC, id DESC").Limit(limit).Find(&posts).Error
	return posts, err
}

// ListByUser pages one user's posts by recency. The owner also sees their
// private and temp posts.
func (s *Service) ListByUser(username, cursor string, limit int, requesterID string) ([]models.PostModel, error) {
	var user models.UserModel
	if err := s.db.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	limit = clampLimit(limit)

	tx := s.db.Preload("User").Preload("Tags").Where("user_id = ?", user.ID)
	if user.ID != requesterID {
		tx = tx.Where("is_private = FALSE AND is_temp = FALSE")
	}

	tx, err := s.applyCursor(tx, cursor)
	if err != nil {
		return nil, err
	}

	var posts []models.PostModel
	err = tx.Order("released_at DESC, id DESC").Limit(limit).Find(&posts).Error
	return posts, err
}

// Like records a like and bumps the counter. Liking twice is a conflict.
func (s *Service) Like(userID, postID string) error {
	var post models.PostModel
	if err := s.db.Select("id, user_id, title, url_slug").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PostLikeModel{}).
			Where("post_id = ? AND user_id = ?", postID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("already liked: %w", apperr.ErrConflict)
		}
		if err := tx.Create(&models.PostLikeModel{PostID: postID, UserID: userID}).Error; err != nil {
			// Concurrent double-tap: the unique (post_id, user_id) index wins
			// where the count pre-check lost the race.
			var mysqlErr *mysqlDriver.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				return fmt.Errorf("already liked: %w", apperr.ErrConflict)
			}
			return err
		}
		return tx.Model(&models.PostModel{}).
			Where("id = ?", postID).
			Update("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return err
	}

	s.notify.Notify(post.UserID, userID, models.NotifyPostLike, map[string]interface{}{
		"post_id":  post.ID,
		"title":    post.Title,
		"url_slug": post.URLSlug,
	})
	return nil
}

// Unlike removes a like and decrements the counter.
func (s *Service) Unlike(userID, postID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).
			Delete(&models.PostLikeModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return tx.Model(&models.PostModel{}).
			Where("id = ? AND like_count > 0", postID).
			Update("like_count", gorm.Expr("like_count - 1")).Error
	})
}

const readDedupeTTL = 24 * time.Hour

// readerIdentity derives the dedupe key for a read. Logged-in readers are
// keyed by user id and no IP hash is stored; anonymous readers are keyed by
// a truncated hash of their IP, which is also what the read log records.
func readerIdentity(userID, ip string) (key, ipHash string) {
	if userID != "" {
		return userID, ""
	}
	sum := sha256.Sum256([]byte(ip))
	ipHash = hex.EncodeToString(sum[:8])
	return ipHash, ipHash
}

// CountRead bumps the read counter at most once per reader per day.
func (s *Service) CountRead(ctx context.Context, postID, userID, ip string) error {
	readerKey, ipHash := readerIdentity(userID, ip)

	set, err := s.rc.SetNX(ctx, "velog:read:"+postID+":"+readerKey, 1, readDedupeTTL)
	if err != nil {
		// Redis being down should not break reads, only dedupe.
		s.log.Warn("read dedupe unavailable", zap.Error(err))
		return nil
	}
	if !set {
		return nil
	}

	if err := s.db.Model(&models.PostModel{}).
		Where("id = ?", postID).
		Update("read_count", gorm.Expr("read_count + 1")).Error; err != nil {
		return err
	}
	return s.db.Create(&models.PostReadModel{
		PostID: postID,
		UserID: userID,
		IPHash: ipHash,
	}).Error
}

// generateSlug builds a per-user unique url slug. A taken slug gets a short
// random suffix instead of failing the save. The check is unscoped: a
// soft-deleted post still holds its slot in the unique index, so its slug
// stays reserved until the row is purged.
func (s *Service) generateSlug(tx *gorm.DB, userID, title, requested string) (string, error) {
	base := slug.Escape(requested)
	if base == "" {
		base = slug.Escape(title)
	}
	if base == "" {
		base = uuid.NewString()[:8]
	}

	var count int64
	if err := tx.Unscoped().Model(&models.PostModel{}).
		Where("user_id = ? AND url_slug = ?", userID, base).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count == 0 {
		return base, nil
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// syncTags diffs the post's tag set against names and only touches the
// rows that changed.
func (s *Service) syncTags(tx *gorm.DB, post *models.PostModel, names []string) error {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		t, err := s.tags.FindOrCreate(tx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrBadRequest) {
				continue // unusable name, e.g. all punctuation
			}
			return err
		}
		want[t.ID] = true
	}

	var current []models.PostTagModel
	if err := tx.Where("fk_post_id = ?", post.ID).Find(&current).Error; err != nil {
		return err
	}

	have := make(map[string]bool, len(current))
	for _, pt := range current {
		have[pt.FkTagID] = true
		if !want[pt.FkTagID] {
			if err := tx.Delete(&models.PostTagModel{}, "id = ?", pt.ID).Error; err != nil {
				return err
			}
		}
	}
	for tagID := range want {
		if have[tagID] {
			continue
		}
		if err := tx.Create(&models.PostTagModel{FkPostID: post.ID, FkTagID: tagID}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) getOwned(postID, userID string) (*models.PostModel, error) {
	var post models.PostModel
	if err := s.db.Preload("User").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if post.UserID != userID {
		return nil, apperr.ErrNoPermission
	}
	return &post, nil
}

func (s *Service) applyCursor(tx *gorm.DB, cursor string) (*gorm.DB, error) {
	if cursor == "" {
		return tx, nil
	}
	var cursorPost models.PostModel
	if err := s.db.Select("id, released_at").First(&cursorPost, "id = ?", cursor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidCursor
		}
		return nil, err
	}
	return tx.Where(
		"(released_at < ? OR (released_at = ? AND id < ?)) AND id <> ?",
		cursorPost.ReleasedAt, cursorPost.ReleasedAt, cursorPost.ID, cursorPost.ID,
	), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
