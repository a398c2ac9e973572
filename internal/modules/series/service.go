package series

import (
	"errors"
	"fmt"

	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service manages series and the ordering of their posts.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) Create(userID string, dto *CreateSeriesDTO) (*models.SeriesModel, error) {
	urlSlug := slug.Normalize(dto.URLSlug)
	if urlSlug == "" {
		urlSlug = slug.Normalize(dto.Name)
	}
	if urlSlug == "" {
		return nil, fmt.Errorf("series name yields an empty url slug: %w", apperr.ErrBadRequest)
	}

	var count int64
	if err := s.db.Model(&models.SeriesModel{}).
		Where("user_id = ? AND url_slug = ?", userID, urlSlug).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("series %q already exists: %w", urlSlug, apperr.ErrConflict)
	}

	series := models.SeriesModel{
		UserID:      userID,
		Name:        dto.Name,
		Description: dto.Description,
		Thumbnail:   dto.Thumbnail,
		URLSlug:     urlSlug,
	}
	if err := s.db.Create(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// GetByUserAndSlug loads a series by owner username and url slug, with its
// posts ordered by series index.
func (s *Service) GetByUserAndSlug(username, urlSlug string) (*models.SeriesModel, error) {
	var user models.UserModel
	if err := s.db.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	var series models.SeriesModel
	err := s.db.
		Preload("SeriesPosts", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("series_posts.index ASC")
		}).
		Preload("SeriesPosts.Post").
		Where("user_id = ? AND url_slug = ?", user.ID, urlSlug).
		First(&series).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &series, nil
}

// ListByUser returns a user's series with their post counts.
func (s *Service) ListByUser(username string) ([]SeriesItem, error) {
	var user models.UserModel
	if err := s.db.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	var items []SeriesItem
	err := s.db.Raw(`
SELECT s.id, s.name, s.description, s.url_slug, s.thumbnail,
       COUNT(sp.id) AS posts_count
FROM series s
LEFT JOIN series_posts sp ON sp.fk_series_id = s.id
WHERE s.user_id = ? AND s.deleted_at IS NULL
GROUP BY s.id, s.name, s.description, s.url_slug, s.thumbnail
ORDER BY s.updated_at DESC`, user.ID).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Update(userID, seriesID string, dto *UpdateSeriesDTO) (*models.SeriesModel, error) {
	series, err := s.getOwned(s.db, userID, seriesID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Thumbnail != nil {
		updates["thumbnail"] = *dto.Thumbnail
	}
	if dto.URLSlug != nil {
		urlSlug := slug.Normalize(*dto.URLSlug)
		if urlSlug == "" {
			return nil, fmt.Errorf("empty url slug: %w", apperr.ErrBadRequest)
		}
		updates["url_slug"] = urlSlug
	}
	if len(updates) == 0 {
		return series, nil
	}

	if err := s.db.Model(series).Updates(updates).Error; err != nil {
		return nil, err
	}
	return series, nil
}

// Delete removes a series. The posts themselves are untouched; only the
// membership rows go away. The series row is removed for real so the
// (user_id, url_slug) slot can be reused by a new series.
func (s *Service) Delete(userID, seriesID string) error {
	series, err := s.getOwned(s.db, userID, seriesID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fk_series_id = ?", series.ID).
			Delete(&models.SeriesPostModel{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(series).Error
	})
}

// AppendPost adds a post at the end of the series. The post must belong to
// the series owner, and a post can appear in a series only once.
func (s *Service) AppendPost(userID, seriesID, postID string) (*models.SeriesPostModel, error) {
	series, err := s.getOwned(s.db, userID, seriesID)
	if err != nil {
		return nil, err
	}

	var post models.PostModel
	if err := s.db.Select("id, user_id").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if post.UserID != userID {
		return nil, apperr.ErrNoPermission
	}

	var sp models.SeriesPostModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.SeriesPostModel{}).
			Where("fk_series_id = ? AND fk_post_id = ?", series.ID, postID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("post already in series: %w", apperr.ErrConflict)
		}

		var count int64
		if err := tx.Model(&models.SeriesPostModel{}).
			Where("fk_series_id = ?", series.ID).
			Count(&count).Error; err != nil {
			return err
		}

		sp = models.SeriesPostModel{
			SeriesID: series.ID,
			PostID:   postID,
			Index:    int(count) + 1,
		}
		return tx.Create(&sp).Error
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// RemovePost drops a post from the series and compacts the remaining
// indices back to a contiguous 1..N range.
func (s *Service) RemovePost(userID, seriesID, postID string) error {
	series, err := s.getOwned(s.db, userID, seriesID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("fk_series_id = ? AND fk_post_id = ?", series.ID, postID).
			Delete(&models.SeriesPostModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}

		var remaining []models.SeriesPostModel
		if err := tx.Where("fk_series_id = ?", series.ID).
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
	})
}

// Reorder rewrites the series order to match orderedPostIDs. The list must
// be an exact permutation of the series posts; validation failures leave
// the series untouched. Only rows whose index actually changes are written.
func (s *Service) Reorder(userID, seriesID string, orderedPostIDs []string) error {
	series, err := s.getOwned(s.db, userID, seriesID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var current []models.SeriesPostModel
		if err := tx.Where("fk_series_id = ?", series.ID).
			Order("`index` ASC").
			Find(&current).Error; err != nil {
			return err
		}

		updates, err := computeReorder(current, orderedPostIDs)
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := tx.Model(&models.SeriesPostModel{}).
				Where("id = ?", u.SeriesPostID).
				Update("index", u.NewIndex).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) getOwned(tx *gorm.DB, userID, seriesID string) (*models.SeriesModel, error) {
	var series models.SeriesModel
	if err := tx.First(&series, "id = ?", seriesID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if series.UserID != userID {
		return nil, apperr.ErrNoPermission
	}
	return &series, nil
}
