package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const defaultSecret = "velog-secret-change-me"

var secret = []byte(defaultSecret)

// Token lifetimes. Access tokens are validated statelessly; refresh tokens
// are bound to a user_sessions row and rotated on use.
const (
	AccessTTL  = time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// SetSecret configures the JWT signing secret (call on startup).
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

// Claims is the JWT payload.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	TokenType string `json:"typ"` // access | refresh
	jwtlib.RegisteredClaims
}

// SignAccess creates a short-lived access token for the given user.
func SignAccess(userID string) (string, error) {
	return sign(userID, "", "access", AccessTTL)
}

// SignRefresh creates a refresh token bound to a session row.
func SignRefresh(userID, sessionID string) (string, error) {
	return sign(userID, sessionID, "refresh", RefreshTTL)
}

func sign(userID, sessionID, tokenType string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string and returns the claims.
func Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ParseAccess validates a token and rejects anything but an access token.
func ParseAccess(tokenStr string) (*Claims, error) {
	claims, err := Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("not an access token")
	}
	return claims, nil
}

// ParseRefresh validates a token and rejects anything but a refresh token.
func ParseRefresh(tokenStr string) (*Claims, error) {
	claims, err := Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" || claims.SessionID == "" {
		return nil, fmt.Errorf("not a refresh token")
	}
	return claims, nil
}
