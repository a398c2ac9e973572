// Package pagination implements classic page/size paging for endpoints
// where a stable cursor is overkill. The public listings paginate by cursor
// instead; this serves own-data views like notifications, where page drift
// under concurrent writes does not matter.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	defaultSize = 20
	maxSize     = 100
)

type Query struct {
	Page int
	Size int
}

// FromContext reads page and size query params, falling back to sane
// defaults on anything non-numeric or out of range.
func FromContext(c *gin.Context) Query {
	q := Query{Page: 1, Size: defaultSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		q.Page = v
	}
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v > 0 {
		q.Size = v
		if q.Size > maxSize {
			q.Size = maxSize
		}
	}
	return q
}

// Paginate runs the count and the windowed find on the given query and
// fills in the response metadata.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	if err := db.Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pages := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}, nil
}
