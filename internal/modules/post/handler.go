package post

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
	g := rg.Group("/posts")

	g.GET("", h.listRecent)
	g.GET("/user/:username", optionalAuthMW, h.listByUser)
	g.GET("/user/:username/:slug", optionalAuthMW, h.getBySlug)
	g.POST("/:id/read", optionalAuthMW, h.countRead)

	a := g.Group("", authMW)
	a.POST("", h.create)
	a.PATCH("/:id", h.update)
	a.DELETE("/:id", h.delete)
	a.POST("/:id/like", h.like)
	a.DELETE("/:id/like", h.unlike)
}

func (h *Handler) listRecent(c *gin.Context) {
	posts, err := h.svc.ListRecent(c.Query("cursor"), parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, posts)
}

func (h *Handler) listByUser(c *gin.Context) {
	posts, err := h.svc.ListByUser(
		c.Param("username"),
		c.Query("cursor"),
		parseLimit(c),
		middleware.CurrentUserID(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, posts)
}

func (h *Handler) getBySlug(c *gin.Context) {
	post, err := h.svc.GetByUsernameAndSlug(
		c.Param("username"),
		c.Param("slug"),
		middleware.CurrentUserID(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, post)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.svc.Update(middleware.CurrentUserID(c), c.Param("id"), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, post)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) like(c *gin.Context) {
	if err := h.svc.Like(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) unlike(c *gin.Context) {
	if err := h.svc.Unlike(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) countRead(c *gin.Context) {
	err := h.svc.CountRead(
		c.Request.Context(),
		c.Param("id"),
		middleware.CurrentUserID(c),
		c.ClientIP(),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return 0
	}
	return limit
}
