package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SearchResult is a single post hit.
type SearchResult struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ShortDescription string `json:"short_description"`
	URLSlug          string `json:"url_slug"`
	Username         string `json:"username"`
	Thumbnail        string `json:"thumbnail,omitempty"`
}

// Service keeps the post search index in sync and answers queries, with a
// MySQL LIKE fallback when no search server is configured.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	tasks *taskqueue.Service
	cfg   config.SearchConfig
	meili *meiliClient
}

func NewService(db *gorm.DB, log *zap.Logger, tasks *taskqueue.Service, cfg config.SearchConfig) *Service {
	s := &Service{db: db, log: log, tasks: tasks, cfg: cfg}
	if cfg.Enable {
		s.meili = newMeiliClient(cfg.Endpoint(), cfg.APIKey, cfg.IndexName)
	}
	return s
}

// Search queries the index, falling back to SQL LIKE against public posts.
func (s *Service) Search(q string, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.meili != nil {
		results, err := s.meili.Search(q, limit)
		if err == nil {
			return results, nil
		}
		s.log.Warn("search server query failed, using sql fallback", zap.Error(err))
	}
	return s.sqlSearch(q, limit)
}

func (s *Service) sqlSearch(q string, limit int) ([]SearchResult, error) {
	like := "%" + strings.TrimSpace(q) + "%"
	var results []SearchResult
	err := s.db.Raw(`
SELECT p.id, p.title, p.short_description, p.url_slug, p.thumbnail, u.username
FROM posts p
JOIN users u ON u.id = p.user_id
WHERE p.is_private = FALSE AND p.is_temp = FALSE AND p.deleted_at IS NULL
  AND (p.title LIKE ? OR p.body LIKE ?)
ORDER BY p.released_at DESC
LIMIT ?`, like, like, limit).Scan(&results).Error
	return results, err
}

// IndexPost upserts one post into the index. Private and temp posts are
// removed instead, so flipping a post private also drops it from search.
// Best-effort: failures log and move on.
func (s *Service) IndexPost(post *models.PostModel, username string) {
	if s.meili == nil {
		return
	}
	if post.IsPrivate || post.IsTemp {
		s.RemovePost(post.ID)
		return
	}
	doc := map[string]interface{}{
		"id":                post.ID,
		"title":             post.Title,
		"body":              post.Body,
		"short_description": post.ShortDescription,
		"url_slug":          post.URLSlug,
		"thumbnail":         post.Thumbnail,
		"username":          username,
	}
	if err := s.meili.AddDocuments([]map[string]interface{}{doc}); err != nil {
		s.log.Warn("post index update failed", zap.String("post_id", post.ID), zap.Error(err))
	}
}

// RemovePost drops one post from the index.
func (s *Service) RemovePost(postID string) {
	if s.meili == nil {
		return
	}
	if err := s.meili.DeleteDocument(postID); err != nil {
		s.log.Warn("post index delete failed", zap.String("post_id", postID), zap.Error(err))
	}
}

const reindexBatchSize = 200

// IndexAll rebuilds the full index from the database in batches.
func (s *Service) IndexAll() error {
	if s.meili == nil {
		return fmt.Errorf("search server is disabled")
	}

	var lastID string
	var indexed int
	for {
		var rows []struct {
			models.PostModel
			Username string
		}
		tx := s.db.Table("posts").
			Select("posts.*, users.username").
			Joins("JOIN users ON users.id = posts.user_id").
			Where("posts.is_private = FALSE AND posts.is_temp = FALSE AND posts.deleted_at IS NULL").
			Order("posts.id ASC").
			Limit(reindexBatchSize)
		if lastID != "" {
			tx = tx.Where("posts.id > ?", lastID)
		}
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		docs := make([]map[string]interface{}, 0, len(rows))
		for i := range rows {
			p := &rows[i].PostModel
			docs = append(docs, map[string]interface{}{
				"id":                p.ID,
				"title":             p.Title,
				"body":              p.Body,
				"short_description": p.ShortDescription,
				"url_slug":          p.URLSlug,
				"thumbnail":         p.Thumbnail,
				"username":          rows[i].Username,
			})
		}
		if err := s.meili.AddDocuments(docs); err != nil {
			return err
		}
		indexed += len(rows)
		lastID = rows[len(rows)-1].ID
	}

	s.log.Info("search reindex finished", zap.Int("documents", indexed))
	return nil
}

// EnqueueReindex registers a reindex task and runs it in the background.
// Duplicate requests collapse onto the running task.
func (s *Service) EnqueueReindex(ctx context.Context) (*taskqueue.Task, error) {
	task, err := s.tasks.Enqueue(ctx, "search.reindex", nil, "search.reindex")
	if err != nil {
		return nil, err
	}
	if task.Status != taskqueue.TaskPending {
		return task, nil
	}

	go func() {
		bg := context.Background()
		_ = s.tasks.UpdateStatus(bg, task.ID, taskqueue.TaskRunning, nil, "")
		if err := s.IndexAll(); err != nil {
			s.log.Error("search reindex failed", zap.Error(err))
			_ = s.tasks.UpdateStatus(bg, task.ID, taskqueue.TaskFailed, nil, err.Error())
			return
		}
		_ = s.tasks.UpdateStatus(bg, task.ID, taskqueue.TaskCompleted, nil, "")
	}()
	return task, nil
}
