package tag

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/middleware"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	g := rg.Group("/tags")

	g.GET("", h.list)
	g.GET("/:name", h.detail)
	g.GET("/:name/posts", optionalAuthMW, h.listPosts)
	g.POST("/merge", authMW, h.merge)
}

func (h *Handler) list(c *gin.Context) {
	sort := c.DefaultQuery("sort", SortTrending)
	cursor := c.Query("cursor")

	var (
		items []TagItem
		err   error
	)
	switch sort {
	case SortTrending:
		items, err = h.svc.ListTrending(cursor, parseLimit(c, DefaultTrendingLimit))
	case SortAlphabetical:
		items, err = h.svc.ListAlphabetical(cursor, parseLimit(c, DefaultListLimit))
	default:
		response.BadRequest(c, "invalid sort mode")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []TagItem{}
	}
	response.OK(c, items)
}

func (h *Handler) detail(c *gin.Context) {
	item, err := h.svc.Detail(c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

func (h *Handler) listPosts(c *gin.Context) {
	userself, _ := strconv.ParseBool(c.DefaultQuery("userself", "false"))
	posts, err := h.svc.ListPosts(
		c.Param("name"),
		c.Query("cursor"),
		parseLimit(c, DefaultPostsLimit),
		middleware.CurrentUserID(c),
		userself,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, posts)
}

func (h *Handler) merge(c *gin.Context) {
	var dto MergeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Merge(middleware.CurrentUserID(c), dto.SourceID, dto.TargetID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
