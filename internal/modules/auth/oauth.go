package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"github.com/veloghq/velog-server/internal/pkg/slug"
	"gorm.io/gorm"
)

// OAuthHandler handles the GitHub and Google login flows. A social identity
// seen for the first time creates a fresh account; a known one logs its
// user in.
type OAuthHandler struct {
	svc *Service
	cfg config.OAuthConfig
}

func NewOAuthHandler(svc *Service, cfg config.OAuthConfig) *OAuthHandler {
	return &OAuthHandler{svc: svc, cfg: cfg}
}

func (h *OAuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	g.GET("/redirect/:provider", h.redirectToProvider)
	g.GET("/callback/:provider", h.handleCallback)
}

func (h *OAuthHandler) provider(id string) (config.OAuthProvider, bool) {
	switch id {
	case "github":
		return h.cfg.GitHub, h.cfg.GitHub.ClientID != ""
	case "google":
		return h.cfg.Google, h.cfg.Google.ClientID != ""
	}
	return config.OAuthProvider{}, false
}

// GET /auth/redirect/:provider
func (h *OAuthHandler) redirectToProvider(c *gin.Context) {
	providerID := c.Param("provider")
	provider, ok := h.provider(providerID)
	if !ok {
		response.NotFoundMsg(c, "oauth provider not configured")
		return
	}

	authURL := authorizeURL(providerID, provider.ClientID, callbackURI(c, providerID))
	if authURL == "" {
		response.NotFoundMsg(c, "oauth provider not configured")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GET /auth/callback/:provider?code=...
func (h *OAuthHandler) handleCallback(c *gin.Context) {
	providerID := c.Param("provider")
	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "missing code")
		return
	}

	provider, ok := h.provider(providerID)
	if !ok {
		response.NotFoundMsg(c, "oauth provider not configured")
		return
	}

	accessToken, err := exchangeCode(providerID, code, provider.ClientID, provider.ClientSecret, callbackURI(c, providerID))
	if err != nil {
		response.InternalError(c, fmt.Errorf("token exchange failed: %w", err))
		return
	}

	socialUser, err := fetchSocialUser(providerID, accessToken)
	if err != nil {
		response.InternalError(c, fmt.Errorf("fetching user info failed: %w", err))
		return
	}

	user, err := h.findOrCreateUser(providerID, accessToken, socialUser)
	if err != nil {
		response.Error(c, err)
		return
	}

	tokens, err := h.svc.issueTokens(user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	setTokenCookies(c, *tokens)
	response.OK(c, AuthResult{User: user, Tokens: *tokens})
}

func (h *OAuthHandler) findOrCreateUser(providerID, accessToken string, su *socialUserInfo) (*models.UserModel, error) {
	var account models.SocialAccountModel
	err := h.svc.db.Where("provider = ? AND provider_uid = ?", providerID, su.ID).
		First(&account).Error
	if err == nil {
		now := time.Now()
		h.svc.db.Model(&account).Updates(map[string]interface{}{
			"access_token": accessToken,
			"last_used":    now,
		})
		var user models.UserModel
		if err := h.svc.db.First(&user, "id = ?", account.UserID).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := su.Email
	if email == "" {
		email = fmt.Sprintf("%s-%s@users.noreply.velog", providerID, su.ID)
	}

	var user models.UserModel
	err = h.svc.db.Transaction(func(tx *gorm.DB) error {
		// Link by email when an account with the same address already exists.
		lookupErr := tx.Where("email = ?", email).First(&user).Error
		if lookupErr != nil {
			if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return lookupErr
			}
			user = models.UserModel{
				Username:    h.pickUsername(tx, su),
				Email:       email,
				Password:    uuid.NewString(), // never matched, social login only
				DisplayName: su.Name,
			}
			if user.DisplayName == "" {
				user.DisplayName = user.Username
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		return tx.Create(&models.SocialAccountModel{
			UserID:      user.ID,
			Provider:    providerID,
			ProviderUID: su.ID,
			AccessToken: accessToken,
			LastUsed:    &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *OAuthHandler) pickUsername(tx *gorm.DB, su *socialUserInfo) string {
	base := strings.ToLower(slug.Escape(su.Login))
	if base == "" {
		base = strings.ToLower(slug.Escape(strings.SplitN(su.Email, "@", 2)[0]))
	}
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 0; i < 5; i++ {
		var count int64
		if tx.Model(&models.UserModel{}).Where("username = ?", candidate).Count(&count); count == 0 {
			return candidate
		}
		candidate = base + "-" + uuid.NewString()[:6]
	}
	return base + "-" + uuid.NewString()[:6]
}

type socialUserInfo struct {
	ID    string
	Login string
	Email string
	Name  string
}

func callbackURI(c *gin.Context, provider string) string {
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/api/v1/auth/callback/%s", scheme, c.Request.Host, provider)
}

func authorizeURL(providerID, clientID, redirectURI string) string {
	switch providerID {
	case "github":
		params := url.Values{}
		params.Set("client_id", clientID)
		params.Set("redirect_uri", redirectURI)
		params.Set("scope", "user:email")
		return "https://github.com/login/oauth/authorize?" + params.Encode()
	case "google":
		params := url.Values{}
		params.Set("client_id", clientID)
		params.Set("redirect_uri", redirectURI)
		params.Set("response_type", "code")
		params.Set("scope", "openid email profile")
		return "https://accounts.google.com/o/oauth2/v2/auth?" + params.Encode()
	}
	return ""
}

var oauthHTTPClient = &http.Client{Timeout: 15 * time.Second}

func exchangeCode(providerID, code, clientID, clientSecret, redirectURI string) (string, error) {
	var endpoint string
	body := url.Values{}
	body.Set("client_id", clientID)
	body.Set("client_secret", clientSecret)
	body.Set("code", code)
	body.Set("redirect_uri", redirectURI)

	switch providerID {
	case "github":
		endpoint = "https://github.com/login/oauth/access_token"
	case "google":
		endpoint = "https://oauth2.googleapis.com/token"
		body.Set("grant_type", "authorization_code")
	default:
		return "", fmt.Errorf("unsupported provider: %s", providerID)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewBufferString(body.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := oauthHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("%s: %s", providerID, result.Error)
	}
	return result.AccessToken, nil
}

func fetchSocialUser(providerID, accessToken string) (*socialUserInfo, error) {
	switch providerID {
	case "github":
		req, _ := http.NewRequest("GET", "https://api.github.com/user", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := oauthHTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var u struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, err
		}
		return &socialUserInfo{
			ID:    fmt.Sprintf("%d", u.ID),
			Login: u.Login,
			Email: u.Email,
			Name:  u.Name,
		}, nil

	case "google":
		req, _ := http.NewRequest("GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := oauthHTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var u struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, err
		}
		return &socialUserInfo{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
		}, nil
	}

	return nil, fmt.Errorf("unsupported provider: %s", providerID)
}
