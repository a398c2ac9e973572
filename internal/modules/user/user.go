package user

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/middleware"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"gorm.io/gorm"
)

type UpdateProfileDTO struct {
	DisplayName *string `json:"display_name"`
	ShortBio    *string `json:"short_bio"`
	Thumbnail   *string `json:"thumbnail"`
	About       *string `json:"about"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetByID(id string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetByUsername(username string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateProfile(userID string, dto *UpdateProfileDTO) (*models.UserModel, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.DisplayName != nil {
		updates["display_name"] = *dto.DisplayName
	}
	if dto.ShortBio != nil {
		updates["short_bio"] = *dto.ShortBio
	}
	if dto.Thumbnail != nil {
		updates["thumbnail"] = *dto.Thumbnail
	}
	if dto.About != nil {
		updates["about"] = *dto.About
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/users")

	g.GET("/me", authMW, h.me)
	g.PATCH("/me", authMW, h.updateProfile)
	g.GET("/:username", h.getByUsername)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.GetByID(middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) getByUsername(c *gin.Context) {
	user, err := h.svc.GetByUsername(c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var dto UpdateProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.UpdateProfile(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}
