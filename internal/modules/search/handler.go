package search

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/search")

	g.GET("", h.search)
	g.POST("/index", authMW, h.reindex)
	g.GET("/index/:taskId", authMW, h.taskStatus)
}

func (h *Handler) search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	results, err := h.svc.Search(q, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	response.OK(c, gin.H{"data": results, "query": q})
}

func (h *Handler) reindex(c *gin.Context) {
	task, err := h.svc.EnqueueReindex(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, task)
}

func (h *Handler) taskStatus(c *gin.Context) {
	task, err := h.svc.tasks.GetByID(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, task)
}
