package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

// Idempotence short-circuits accidental double submits: of two identical
// mutating requests inside the window, only the first executes and the
// second gets 409. The key is the client-sent x-idempotence header when
// present, otherwise a fingerprint of the whole request.
const (
	idempotenceHeader = "x-idempotence"
	idempotencePrefix = "velog:idempotence:"
	idempotenceTTL    = time.Minute

	pendingMarker = "0"
	doneMarker    = "1"
)

// Login and refresh are retried legitimately; a 409 there would lock a user
// out for a minute.
var idempotenceExempt = map[string]bool{
	"/api/v1/auth/login":   true,
	"/api/v1/auth/refresh": true,
}

func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet ||
			idempotenceExempt[strings.TrimRight(c.Request.URL.Path, "/")] {
			c.Next()
			return
		}

		key := idempotenceKey(c)
		if key == "" {
			c.Next()
			return
		}
		key = idempotencePrefix + key
		ctx := c.Request.Context()

		// SetNX doubles as check and claim.
		claimed, err := rdb.SetNX(ctx, key, pendingMarker, idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			msg := "identical request already succeeded within the last minute"
			if v, _ := rdb.Get(ctx, key).Result(); v == pendingMarker {
				msg = "identical request is still in flight"
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rdb.Set(ctx, key, doneMarker, redis.KeepTTL)
		} else {
			// Failed attempts may be retried immediately.
			rdb.Del(ctx, key)
		}
	}
}

func idempotenceKey(c *gin.Context) string {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	token := NormalizeToken(c.GetHeader("Authorization"))
	if token == "" {
		if raw, err := c.Cookie("access_token"); err == nil {
			token = NormalizeToken(raw)
		}
	}

	fingerprint := strings.Join([]string{
		c.Request.Method,
		c.Request.URL.String(),
		string(body),
		c.ClientIP(),
		token,
	}, "|")
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
