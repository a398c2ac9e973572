package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/middleware"
	"github.com/veloghq/velog-server/internal/modules/auth"
	"github.com/veloghq/velog-server/internal/modules/comment"
	"github.com/veloghq/velog-server/internal/modules/feed"
	"github.com/veloghq/velog-server/internal/modules/file"
	"github.com/veloghq/velog-server/internal/modules/notification"
	"github.com/veloghq/velog-server/internal/modules/post"
	"github.com/veloghq/velog-server/internal/modules/search"
	"github.com/veloghq/velog-server/internal/modules/series"
	"github.com/veloghq/velog-server/internal/modules/sitemap"
	"github.com/veloghq/velog-server/internal/modules/tag"
	"github.com/veloghq/velog-server/internal/modules/user"
	"github.com/veloghq/velog-server/internal/pkg/mail"
	pkgredis "github.com/veloghq/velog-server/internal/pkg/redis"
	"github.com/veloghq/velog-server/internal/pkg/response"
	"github.com/veloghq/velog-server/internal/pkg/slack"
	"github.com/veloghq/velog-server/internal/pkg/taskqueue"
	"gorm.io/gorm"
)

const apiPrefix = "/api/v1"

// services bundles the shared service instances so the cron jobs can reuse
// the same wiring as the HTTP routes.
type services struct {
	db     *gorm.DB
	auth   *auth.Service
	search *search.Service
	cfg    *config.AppConfig
}

func (a *App) registerRoutes(rc *pkgredis.Client) *services {
	r := a.router
	db := a.db
	cfg := a.cfg

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	slackSvc := slack.New(cfg.SlackWebhook)
	mailSender := mail.New(cfg.Mail)
	taskSvc := taskqueue.NewService(rc)

	// Rate limiting and idempotence run on every route.
	r.Use(middleware.RateLimit(rc.Raw(), slackSvc))
	r.Use(middleware.Idempotence(rc.Raw()))

	authMW := middleware.Auth()
	optionalAuthMW := middleware.OptionalAuth()

	tagSvc := tag.NewService(db, a.logger)
	notifySvc := notification.NewService(db, a.logger)
	searchSvc := search.NewService(db, a.logger, taskSvc, cfg.Search)
	authSvc := auth.NewService(db, a.logger, slackSvc, mailSender)
	postSvc := post.NewService(db, a.logger, rc, tagSvc, notifySvc, searchSvc, slackSvc, cfg.WebURL)
	seriesSvc := series.NewService(db, a.logger)
	commentSvc := comment.NewService(db, a.logger, notifySvc)
	userSvc := user.NewService(db)
	fileSvc := file.NewService(db, a.logger, cfg.Storage)

	// Root-level endpoints. Feeds and the sitemap are expensive to build and
	// fine to serve a minute stale.
	root := r.Group("", middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL: time.Minute,
	}))
	sitemap.NewHandler(db, cfg.WebURL).RegisterRoutes(root)
	feed.NewHandler(db, tagSvc, cfg.WebURL).RegisterRoutes(root)

	// Versioned API
	api := r.Group(apiPrefix)

	auth.NewHandler(authSvc).RegisterRoutes(api)
	auth.NewOAuthHandler(authSvc, cfg.OAuth).RegisterRoutes(api)
	user.NewHandler(userSvc).RegisterRoutes(api, authMW)
	post.NewHandler(postSvc).RegisterRoutes(api, authMW, optionalAuthMW)
	tag.NewHandler(tagSvc).RegisterRoutes(api, authMW, optionalAuthMW)
	series.NewHandler(seriesSvc).RegisterRoutes(api, authMW)
	comment.NewHandler(commentSvc).RegisterRoutes(api, authMW)
	notification.NewHandler(notifySvc).RegisterRoutes(api, authMW)
	file.NewHandler(fileSvc).RegisterRoutes(api, authMW)
	search.NewHandler(searchSvc).RegisterRoutes(api, authMW)

	return &services{db: db, auth: authSvc, search: searchSvc, cfg: cfg}
}
