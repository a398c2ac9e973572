package notification

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/middleware"
	"github.com/veloghq/velog-server/internal/pkg/pagination"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/notifications", authMW)

	g.GET("", h.list)
	g.GET("/unread-count", h.unreadCount)
	g.PATCH("/read-all", h.markAllRead)
	g.PATCH("/:id/read", h.markRead)
}

func (h *Handler) list(c *gin.Context) {
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	items, pag, err := h.svc.List(middleware.CurrentUserID(c), pagination.FromContext(c), unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.svc.UnreadCount(middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"count": count})
}

func (h *Handler) markRead(c *gin.Context) {
	if err := h.svc.MarkRead(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) markAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
