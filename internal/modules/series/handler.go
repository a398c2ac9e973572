package series

import (
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/series")

	g.GET("/user/:username", h.listByUser)
	g.GET("/user/:username/:slug", h.getBySlug)

	a := g.Group("", authMW)
	a.POST("", h.create)
	a.PATCH("/:id", h.update)
	a.DELETE("/:id", h.delete)
	a.POST("/:id/posts", h.appendPost)
	a.DELETE("/:id/posts/:postId", h.removePost)
	a.PUT("/:id/order", h.reorder)
}

func (h *Handler) listByUser(c *gin.Context) {
	items, err := h.svc.ListByUser(c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []SeriesItem{}
	}
	response.OK(c, items)
}

func (h *Handler) getBySlug(c *gin.Context) {
	series, err := h.svc.GetByUserAndSlug(c.Param("username"), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, series)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateSeriesDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	series, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, series)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateSeriesDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	series, err := h.svc.Update(middleware.CurrentUserID(c), c.Param("id"), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, series)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) appendPost(c *gin.Context) {
	var dto AppendPostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sp, err := h.svc.AppendPost(middleware.CurrentUserID(c), c.Param("id"), dto.PostID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sp)
}

func (h *Handler) removePost(c *gin.Context) {
	err := h.svc.RemovePost(middleware.CurrentUserID(c), c.Param("id"), c.Param("postId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) reorder(c *gin.Context) {
	var dto ReorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.svc.Reorder(middleware.CurrentUserID(c), c.Param("id"), dto.PostIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
