package file

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/middleware"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Images above this size are rejected before touching object storage.
const maxUploadSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Service uploads images to an S3-compatible bucket and tracks them in the
// files table so orphans can be found later.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    config.StorageConfig
	client *s3.Client
}

func NewService(db *gorm.DB, log *zap.Logger, cfg config.StorageConfig) *Service {
	s := &Service{db: db, log: log, cfg: cfg}
	if cfg.Enable {
		opts := s3.Options{
			Region: cfg.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			),
		}
		if cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.Endpoint)
			opts.UsePathStyle = true
		}
		s.client = s3.New(opts)
	}
	return s
}

func (s *Service) Upload(ctx context.Context, userID, refType, refID string, header *multipart.FileHeader) (*models.FileModel, error) {
	if s.client == nil {
		return nil, fmt.Errorf("object storage is disabled: %w", apperr.ErrBadRequest)
	}
	if header.Size > maxUploadSize {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", maxUploadSize, apperr.ErrBadRequest)
	}
	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return nil, fmt.Errorf("unsupported content type %q: %w", contentType, apperr.ErrBadRequest)
	}

	var user models.UserModel
	if err := s.db.Select("id, username").First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	filename := sanitizeFilename(header.Filename)
	key := fmt.Sprintf("images/%s/%s/%s", user.Username, uuid.NewString(), filename)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(header.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("object upload failed: %w", err)
	}

	f := models.FileModel{
		UserID:      userID,
		Key:         key,
		URL:         s.publicURL(key),
		ContentType: contentType,
		Size:        header.Size,
		RefType:     refType,
		RefID:       refID,
	}
	if err := s.db.Create(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Service) publicURL(key string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
	}
	return base + "/" + key
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		return "image"
	}
	return name
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/files", authMW)

	g.POST("/upload", h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}

	f, err := h.svc.Upload(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.PostForm("ref_type"),
		c.PostForm("ref_id"),
		header,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, f)
}
