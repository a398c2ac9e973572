package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// HTTPCache stores whole anonymous GET responses in Redis. It fronts the
// feed and sitemap endpoints, which rebuild their XML from several queries
// on every hit and are fine to serve slightly stale.
const (
	httpCachePrefix     = "velog:httpcache:"
	defaultHTTPCacheTTL = 15 * time.Second
	maxCacheableBody    = 1 << 20 // 1 MiB
)

type HTTPCacheOptions struct {
	TTL time.Duration
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// captureWriter tees the response body into a buffer. Oversized bodies stop
// being captured but still stream to the client.
type captureWriter struct {
	gin.ResponseWriter
	buf      bytes.Buffer
	overflow bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.buf.Len()+len(b) > maxCacheableBody {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func HTTPCache(rdb *redis.Client, opts HTTPCacheOptions) gin.HandlerFunc {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultHTTPCacheTTL
	}

	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method != http.MethodGet || IsAuthenticated(c) {
			c.Next()
			return
		}

		key := httpCachePrefix + c.Request.URL.RequestURI()
		if raw, err := rdb.Get(c.Request.Context(), key).Bytes(); err == nil {
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil && cached.Status > 0 {
				c.Header("x-velog-cache", "hit")
				c.Data(cached.Status, cached.ContentType, cached.Body)
				c.Abort()
				return
			}
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if c.Writer.Status() != http.StatusOK || w.overflow || w.buf.Len() == 0 {
			return
		}
		raw, err := json.Marshal(cachedResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        w.buf.Bytes(),
		})
		if err != nil {
			return
		}
		_ = rdb.Set(c.Request.Context(), key, raw, ttl).Err()
	}
}
