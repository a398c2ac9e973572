package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/veloghq/velog-server/internal/pkg/jwt"
	"github.com/veloghq/velog-server/internal/pkg/slack"
)

// Anonymous traffic gets a fixed per-IP budget per one-second window.
// Authenticated users are exempt; abusive accounts are a moderation problem,
// not a rate limiting one.
const (
	rateLimitBudget = 50
	rateLimitWindow = time.Second
)

// rateLimitExempt reports whether the request skips rate limiting. This
// middleware runs before the auth middleware has populated the context, so
// the access token is parsed here rather than read from context.
func rateLimitExempt(c *gin.Context) bool {
	if c.ClientIP() == "" {
		return true
	}
	claims, err := jwt.ParseAccess(extractToken(c))
	return err == nil && claims.UserID != ""
}

func RateLimit(rdb *redis.Client, slackSvc *slack.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateLimitExempt(c) {
			c.Next()
			return
		}
		ip := c.ClientIP()

		ctx := c.Request.Context()
		key := fmt.Sprintf("velog:ratelimit:%s:%d", ip, time.Now().Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis outage degrades to no limiting rather than no service.
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count <= rateLimitBudget {
			c.Next()
			return
		}

		// Alert once per window, on the first rejected request.
		if slackSvc != nil && count == rateLimitBudget+1 {
			path := c.Request.URL.Path
			go slackSvc.Notify(fmt.Sprintf("rate limit exceeded: %s on %s", ip, path)) // nolint:errcheck
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"ok":      0,
			"code":    http.StatusTooManyRequests,
			"message": "too many requests",
		})
	}
}
