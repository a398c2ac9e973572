package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := SignAccess("user-1")
	require.NoError(t, err)

	claims, err := ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.Empty(t, claims.SessionID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	token, err := SignRefresh("user-1", "sess-1")
	require.NoError(t, err)

	claims, err := ParseRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParseAccessRejectsRefreshToken(t *testing.T) {
	token, err := SignRefresh("user-1", "sess-1")
	require.NoError(t, err)

	_, err = ParseAccess(token)
	assert.Error(t, err)
}

func TestParseRefreshRejectsAccessToken(t *testing.T) {
	token, err := SignAccess("user-1")
	require.NoError(t, err)

	_, err = ParseRefresh(token)
	assert.Error(t, err)
}

func TestParseRejectsTamperedToken(t *testing.T) {
	token, err := SignAccess("user-1")
	require.NoError(t, err)

	_, err = Parse(token + "x")
	assert.Error(t, err)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := SignAccess("user-1")
	require.NoError(t, err)

	SetSecret("another-secret")
	defer SetSecret(defaultSecret)

	_, err = Parse(token)
	assert.Error(t, err)
}
