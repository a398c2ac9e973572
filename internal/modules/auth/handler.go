package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	jwtpkg "github.com/veloghq/velog-server/internal/pkg/jwt"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Register(&dto, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	setTokenCookies(c, result.Tokens)
	response.Created(c, result)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Login(&dto, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			response.Unauthorized(c)
			return
		}
		response.Error(c, err)
		return
	}
	setTokenCookies(c, result.Tokens)
	response.OK(c, result)
}

func (h *Handler) refresh(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		response.Unauthorized(c)
		return
	}
	tokens, err := h.svc.Refresh(token, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	setTokenCookies(c, *tokens)
	response.OK(c, tokens)
}

func (h *Handler) logout(c *gin.Context) {
	if token := refreshTokenFrom(c); token != "" {
		if err := h.svc.Logout(token); err != nil {
			response.Error(c, err)
			return
		}
	}
	clearTokenCookies(c)
	response.NoContent(c)
}

// refreshTokenFrom reads the refresh token from the JSON body, falling back
// to the cookie set at login.
func refreshTokenFrom(c *gin.Context) string {
	var dto RefreshDTO
	if err := c.ShouldBindJSON(&dto); err == nil && dto.RefreshToken != "" {
		return dto.RefreshToken
	}
	if cookie, err := c.Cookie("refresh_token"); err == nil {
		return cookie
	}
	return ""
}

func setTokenCookies(c *gin.Context, tokens TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", tokens.AccessToken, int(jwtpkg.AccessTTL.Seconds()), "/", "", false, true)
	c.SetCookie("refresh_token", tokens.RefreshToken, int(jwtpkg.RefreshTTL.Seconds()), "/", "", false, true)
}

func clearTokenCookies(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", false, true)
	c.SetCookie("refresh_token", "", -1, "/", "", false, true)
}
