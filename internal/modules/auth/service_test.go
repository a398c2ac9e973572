package auth

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	jwtpkg "github.com/veloghq/velog-server/internal/pkg/jwt"
	"github.com/veloghq/velog-server/internal/pkg/mail"
	"github.com/veloghq/velog-server/internal/pkg/slack"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewService(db, zap.NewNop(), slack.New(""), mail.New(mail.Config{})), mock, sqlDB
}

func sessionRow(id, userID string, expiresAt time.Time, revokedAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "expires_at", "revoked_at"}).
		AddRow(id, userID, expiresAt, revokedAt)
}

func TestRefresh_RotatesSession(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	token, err := jwtpkg.SignRefresh("u1", "sess-1")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM `user_sessions` WHERE id = \\?").
		WithArgs("sess-1", 1).
		WillReturnRows(sessionRow("sess-1", "u1", time.Now().Add(time.Hour), nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_sessions` SET `revoked_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `user_sessions`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tokens, err := svc.Refresh(token, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	// The new refresh token must point at a new session row.
	claims, err := jwtpkg.ParseRefresh(tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, "sess-1", claims.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_RejectsRevokedSession(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	token, err := jwtpkg.SignRefresh("u1", "sess-1")
	require.NoError(t, err)

	revoked := time.Now().Add(-time.Minute)
	mock.ExpectQuery("SELECT .* FROM `user_sessions` WHERE id = \\?").
		WillReturnRows(sessionRow("sess-1", "u1", time.Now().Add(time.Hour), &revoked))

	_, err = svc.Refresh(token, "", "")
	assert.ErrorIs(t, err, apperr.ErrNoPermission)
}

func TestRefresh_RejectsForeignSession(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	token, err := jwtpkg.SignRefresh("u1", "sess-1")
	require.NoError(t, err)

	// Session exists but belongs to someone else.
	mock.ExpectQuery("SELECT .* FROM `user_sessions` WHERE id = \\?").
		WillReturnRows(sessionRow("sess-1", "u2", time.Now().Add(time.Hour), nil))

	_, err = svc.Refresh(token, "", "")
	assert.ErrorIs(t, err, apperr.ErrNoPermission)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _, sqlDB := newTestService(t)
	defer sqlDB.Close()

	token, err := jwtpkg.SignAccess("u1")
	require.NoError(t, err)

	_, err = svc.Refresh(token, "", "")
	assert.ErrorIs(t, err, apperr.ErrNoPermission)
}

func TestLogin_BadCredentialsAreIndistinct(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnError(gorm.ErrRecordNotFound)
	_, unknownErr := svc.Login(&LoginDTO{Username: "ghost", Password: "whatever"}, "", "")

	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password"}).
			AddRow("u1", "alice", string(hash)))
	_, wrongPassErr := svc.Login(&LoginDTO{Username: "alice", Password: "wrong"}, "", "")

	assert.ErrorIs(t, unknownErr, ErrBadCredentials)
	assert.ErrorIs(t, wrongPassErr, ErrBadCredentials)
}

func TestRegister_RejectsBadUsername(t *testing.T) {
	svc, _, sqlDB := newTestService(t)
	defer sqlDB.Close()

	for _, name := range []string{"ab", "UPPER", "has space", "way-too-long-username"} {
		_, err := svc.Register(&RegisterDTO{Username: name, Email: "a@b.c", Password: "password1"}, "", "")
		assert.ErrorIs(t, err, apperr.ErrBadRequest, "username %q", name)
	}
}

func TestRegister_DuplicateConflict(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("alice", "alice@velog.io").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Register(&RegisterDTO{
		Username: "alice",
		Email:    "alice@velog.io",
		Password: "password1",
	}, "", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLogout_InvalidTokenIsNoop(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	require.NoError(t, svc.Logout("not-a-token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
