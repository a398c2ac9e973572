package tag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service handles tag resolution, aggregation and the cursor-paginated
// tag listings.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// publicCountsSQL aggregates public post counts per canonical tag. The LEFT
// JOIN against tag_alias rewrites each fk_tag_id to its alias target, so a
// canonical tag's count includes posts tagged with any of its aliases.
const publicCountsSQL = `
SELECT COALESCE(ta.fk_alias_tag_id, pt.fk_tag_id) AS tag_id,
       COUNT(DISTINCT pt.fk_post_id) AS posts_count
FROM posts_tags pt
JOIN posts p ON p.id = pt.fk_post_id
  AND p.is_private = FALSE AND p.is_temp = FALSE AND p.deleted_at IS NULL
LEFT JOIN tag_alias ta ON ta.fk_tag_id = pt.fk_tag_id AND ta.deleted_at IS NULL
GROUP BY COALESCE(ta.fk_alias_tag_id, pt.fk_tag_id)`

// FindOrCreate resolves a display name to its tag row, creating the tag on
// first use. Runs inside the caller's transaction so post tag sync stays
// atomic.
func (s *Service) FindOrCreate(tx *gorm.DB, name string) (*models.TagModel, error) {
	norm := slug.Normalize(name)
	if norm == "" {
		return nil, fmt.Errorf("empty tag name: %w", apperr.ErrBadRequest)
	}

	var tag models.TagModel
	err := tx.Where("name_filtered = ?", norm).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag = models.TagModel{Name: strings.TrimSpace(name), NameFiltered: norm}
	if err := tx.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// ResolveOriginTag resolves a display name to its canonical tag, following
// at most one level of alias indirection.
func (s *Service) ResolveOriginTag(name string) (*models.TagModel, error) {
	norm := slug.Normalize(name)
	if norm == "" {
		return nil, apperr.ErrNotFound
	}

	var tag models.TagModel
	if err := s.db.Where("name_filtered = ?", norm).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if !tag.IsAlias {
		return &tag, nil
	}

	var edge models.TagAliasModel
	if err := s.db.Where("fk_tag_id = ?", tag.ID).First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Broken alias: the row claims to be an alias but carries no edge.
			s.log.Error("alias tag has no alias edge",
				zap.String("tag_id", tag.ID),
				zap.String("tag_name", tag.Name))
			return nil, fmt.Errorf("tag %q: %w", tag.Name, apperr.ErrDataIntegrity)
		}
		return nil, err
	}

	var origin models.TagModel
	if err := s.db.First(&origin, "id = ?", edge.AliasTagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("alias edge points at a missing tag",
				zap.String("tag_id", tag.ID),
				zap.String("alias_tag_id", edge.AliasTagID))
			return nil, fmt.Errorf("tag %q: %w", tag.Name, apperr.ErrDataIntegrity)
		}
		return nil, err
	}
	// Only one hop is resolved; a target that is itself an alias is returned
	// as-is rather than chased further.
	return &origin, nil
}

// CountPublicPosts returns the number of distinct public posts carrying the
// tag or any of its aliases. Unknown tags count as zero, not as an error.
func (s *Service) CountPublicPosts(tagID string) (int64, error) {
	var count int64
	err := s.db.Raw(`
SELECT COUNT(DISTINCT pt.fk_post_id)
FROM posts_tags pt
JOIN posts p ON p.id = pt.fk_post_id
  AND p.is_private = FALSE AND p.is_temp = FALSE AND p.deleted_at IS NULL
LEFT JOIN tag_alias ta ON ta.fk_tag_id = pt.fk_tag_id AND ta.deleted_at IS NULL
WHERE COALESCE(ta.fk_alias_tag_id, pt.fk_tag_id) = ?`, tagID).Scan(&count).Error
	return count, err
}

// Detail returns the canonical tag for name together with its post count.
func (s *Service) Detail(name string) (*TagItem, error) {
	origin, err := s.ResolveOriginTag(name)
	if err != nil {
		return nil, err
	}
	count, err := s.CountPublicPosts(origin.ID)
	if err != nil {
		return nil, err
	}
	return &TagItem{
		ID:          origin.ID,
		Name:        origin.Name,
		Description: origin.Description,
		Thumbnail:   origin.Thumbnail,
		CreatedAt:   origin.CreatedAt,
		PostsCount:  count,
	}, nil
}

// ListAlphabetical pages canonical tags ordered by name. The cursor is the
// last-seen tag id; the next page starts strictly after that tag's name.
func (s *Service) ListAlphabetical(cursor string, limit int) ([]TagItem, error) {
	limit = clampLimit(limit, DefaultListLimit)

	query := `
SELECT t.id, t.name, t.description, t.thumbnail, t.created_at,
       COALESCE(c.posts_count, 0) AS posts_count
FROM tags t
LEFT JOIN (` + publicCountsSQL + `) c ON c.tag_id = t.id
WHERE t.is_alias = FALSE AND t.deleted_at IS NULL`
	args := []interface{}{}

	if cursor != "" {
		cursorTag, err := s.getByID(cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND t.name > ?`
		args = append(args, cursorTag.Name)
	}

	query += ` ORDER BY t.name ASC LIMIT ?`
	args = append(args, limit)

	var items []TagItem
	if err := s.db.Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListTrending pages canonical tags ranked by public post count. Ordering is
// (posts_count DESC, id DESC); the id tie-break makes the order a strict
// total order even when counts collide, so pages never duplicate or skip
// rows under concurrent inserts.
func (s *Service) ListTrending(cursor string, limit int) ([]TagItem, error) {
	limit = clampLimit(limit, DefaultTrendingLimit)

	query := `
SELECT t.id, t.name, t.description, t.thumbnail, t.created_at, c.posts_count
FROM (` + publicCountsSQL + `) c
JOIN tags t ON t.id = c.tag_id AND t.deleted_at IS NULL
WHERE t.is_alias = FALSE`
	args := []interface{}{}

	if cursor != "" {
		cursorTag, err := s.getByID(cursor)
		if err != nil {
			return nil, err
		}
		cursorCount, err := s.CountPublicPosts(cursorTag.ID)
		if err != nil {
			return nil, err
		}
		query += ` AND (c.posts_count < ? OR (c.posts_count = ? AND t.id < ?))`
		args = append(args, cursorCount, cursorCount, cursorTag.ID)
	}

	query += ` ORDER BY c.posts_count DESC, t.id DESC LIMIT ?`
	args = append(args, limit)

	var items []TagItem
	if err := s.db.Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListPosts pages the posts carrying a tag (or any alias of it) by recency,
// ordered (released_at DESC, id DESC). Private and temp posts only appear
// when userself is set and the post belongs to the requester.
func (s *Service) ListPosts(name, cursor string, limit int, requesterID string, userself bool) ([]models.PostModel, error) {
	origin, err := s.ResolveOriginTag(name)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultPostsLimit)

	query := `
SELECT DISTINCT p.*
FROM posts p
JOIN posts_tags pt ON pt.fk_post_id = p.id
LEFT JOIN tag_alias ta ON ta.fk_tag_id = pt.fk_tag_id AND ta.deleted_at IS NULL
WHERE COALESCE(ta.fk_alias_tag_id, pt.fk_tag_id) = ? AND p.deleted_at IS NULL`
	args := []interface{}{origin.ID}

	if userself && requesterID != "" {
		query += ` AND ((p.is_private = FALSE AND p.is_temp = FALSE) OR p.user_id = ?)`
		args = append(args, requesterID)
	} else {
		query += ` AND p.is_private = FALSE AND p.is_temp = FALSE`
	}

	if cursor != "" {
		var cursorPost models.PostModel
		if err := s.db.First(&cursorPost, "id = ?", cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrInvalidCursor
			}
			return nil, err
		}
		query += ` AND (p.released_at < ? OR (p.released_at = ? AND p.id < ?)) AND p.id <> ?`
		args = append(args, cursorPost.ReleasedAt, cursorPost.ReleasedAt, cursorPost.ID, cursorPost.ID)
	}

	query += ` ORDER BY p.released_at DESC, p.id DESC LIMIT ?`
	args = append(args, limit)

	var posts []models.PostModel
	if err := s.db.Raw(query, args...).Scan(&posts).Error; err != nil {
		return nil, err
	}
	return posts, s.attachUsers(posts)
}

// Merge converts source into an alias of target. Historical post
// associations are preserved; aggregation coalesces them onto target from
// now on. Aliases already pointing at source are re-pointed at target so
// chains stay one hop deep.
func (s *Service) Merge(requesterID, sourceID, targetID string) error {
	var requester models.UserModel
	if err := s.db.Select("id, is_certified").First(&requester, "id = ?", requesterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNoPermission
		}
		return err
	}
	if !requester.IsCertified {
		return apperr.ErrNoPermission
	}

	if sourceID == targetID {
		return fmt.Errorf("cannot merge a tag into itself: %w", apperr.ErrBadRequest)
	}

	var source, target models.TagModel
	if err := s.db.First(&source, "id = ?", sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	if target.IsAlias {
		return fmt.Errorf("merge target is an alias: %w", apperr.ErrBadRequest)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&source).Update("is_alias", true).Error; err != nil {
			return err
		}
		// Re-point aliases of source so no two-hop chain survives the merge.
		if err := tx.Model(&models.TagAliasModel{}).
			Where("fk_alias_tag_id = ?", source.ID).
			Update("fk_alias_tag_id", target.ID).Error; err != nil {
			return err
		}
		edge := models.TagAliasModel{TagID: source.ID, AliasTagID: target.ID}
		return tx.Where("fk_tag_id = ?", source.ID).
			Assign(models.TagAliasModel{AliasTagID: target.ID}).
			FirstOrCreate(&edge).Error
	})
}

func (s *Service) getByID(id string) (*models.TagModel, error) {
	var tag models.TagModel
	if err := s.db.First(&tag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidCursor
		}
		return nil, err
	}
	return &tag, nil
}

func (s *Service) attachUsers(posts []models.PostModel) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	var users []models.UserModel
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	byID := make(map[string]*models.UserModel, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range posts {
		posts[i].User = byID[posts[i].UserID]
	}
	return nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
