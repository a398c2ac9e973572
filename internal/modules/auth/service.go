package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	jwtpkg "github.com/veloghq/velog-server/internal/pkg/jwt"
	"github.com/veloghq/velog-server/internal/pkg/mail"
	"github.com/veloghq/velog-server/internal/pkg/slack"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,16}$`)

// ErrBadCredentials is deliberately indistinct: it never reveals whether
// the account exists or the password was wrong.
var ErrBadCredentials = errors.New("invalid username or password")

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	slack *slack.Service
	mail  *mail.Sender
}

func NewService(db *gorm.DB, log *zap.Logger, slackSvc *slack.Service, sender *mail.Sender) *Service {
	return &Service{db: db, log: log, slack: slackSvc, mail: sender}
}

func (s *Service) Register(dto *RegisterDTO, ip, ua string) (*AuthResult, error) {
	if !usernamePattern.MatchString(dto.Username) {
		return nil, fmt.Errorf("username must be 3-16 chars of a-z, 0-9, - or _: %w", apperr.ErrBadRequest)
	}

	var count int64
	if err := s.db.Model(&models.UserModel{}).
		Where("username = ? OR email = ?", dto.Username, dto.Email).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("username or email already taken: %w", apperr.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.UserModel{
		Username:    dto.Username,
		Email:       dto.Email,
		Password:    string(hash),
		DisplayName: dto.DisplayName,
	}
	if user.DisplayName == "" {
		user.DisplayName = dto.Username
	}
	if err := s.db.Create(&user).Error; err != nil {
		// The uniqueness pre-check races with concurrent signups; the unique
		// index has the final say.
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("username or email already taken: %w", apperr.ErrConflict)
		}
		return nil, err
	}

	if err := s.slack.NotifySignup(user.Username, user.Email); err != nil {
		s.log.Warn("slack notify failed", zap.Error(err))
	}
	go func() {
		err := s.mail.Send(mail.Message{
			To:      []string{user.Email},
			Subject: "Welcome to velog",
			HTML: fmt.Sprintf("<p>Hi @%s,</p><p>your velog account is ready. Happy writing!</p>",
				user.Username),
		})
		if err != nil {
			s.log.Warn("welcome mail failed", zap.Error(err))
		}
	}()

	tokens, err := s.issueTokens(user.ID, ip, ua)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: &user, Tokens: *tokens}, nil
}

func (s *Service) Login(dto *LoginDTO, ip, ua string) (*AuthResult, error) {
	var user models.UserModel
	err := s.db.Where("username = ? OR email = ?", dto.Username, dto.Username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)) != nil {
		return nil, ErrBadCredentials
	}

	tokens, err := s.issueTokens(user.ID, ip, ua)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: &user, Tokens: *tokens}, nil
}

// Refresh rotates a refresh token: the presented session is revoked and a
// fresh one issued, so a stolen refresh token stops working after its first
// replay.
func (s *Service) Refresh(refreshToken, ip, ua string) (*TokenPair, error) {
	claims, err := jwtpkg.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperr.ErrNoPermission
	}

	var session models.UserSession
	if err := s.db.First(&session, "id = ?", claims.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNoPermission
		}
		return nil, err
	}
	if session.UserID != claims.UserID || session.RevokedAt != nil || time.Now().After(session.ExpiresAt) {
		return nil, apperr.ErrNoPermission
	}

	var tokens *TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&session).Update("revoked_at", &now).Error; err != nil {
			return err
		}
		tokens, err = s.issueTokensTx(tx, session.UserID, ip, ua)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout revokes the session behind the refresh token. An already invalid
// token is not an error; logout is idempotent.
func (s *Service) Logout(refreshToken string) error {
	claims, err := jwtpkg.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	now := time.Now()
	return s.db.Model(&models.UserSession{}).
		Where("id = ? AND revoked_at IS NULL", claims.SessionID).
		Update("revoked_at", &now).Error
}

// RevokeExpiredSessions deletes sessions past their expiry. Runs from the
// scheduler.
func (s *Service) RevokeExpiredSessions() (int64, error) {
	res := s.db.Unscoped().
		Where("expires_at < ?", time.Now().Add(-24*time.Hour)).
		Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}

func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func (s *Service) issueTokens(userID, ip, ua string) (*TokenPair, error) {
	return s.issueTokensTx(s.db, userID, ip, ua)
}

func (s *Service) issueTokensTx(tx *gorm.DB, userID, ip, ua string) (*TokenPair, error) {
	session := models.UserSession{
		UserID:    userID,
		IP:        ip,
		UA:        ua,
		ExpiresAt: time.Now().Add(jwtpkg.RefreshTTL),
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, err
	}

	access, err := jwtpkg.SignAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := jwtpkg.SignRefresh(userID, session.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
