package auth

import "github.com/veloghq/velog-server/internal/models"

type RegisterDTO struct {
	Username    string `json:"username"     binding:"required"`
	Email       string `json:"email"        binding:"required,email"`
	Password    string `json:"password"     binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type LoginDTO struct {
	// Username also accepts the account email.
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is the stateless access token plus the session-bound refresh
// token returned on login and rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResult struct {
	User   *models.UserModel `json:"user"`
	Tokens TokenPair         `json:"tokens"`
}
