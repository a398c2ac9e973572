package sitemap

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/models"
	"gorm.io/gorm"
)

// Handler renders the sitemap from public posts and user pages.
type Handler struct {
	db     *gorm.DB
	webURL string
}

func NewHandler(db *gorm.DB, webURL string) *Handler {
	return &Handler{db: db, webURL: webURL}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sitemap.xml", h.render)
}

type sitemapURL struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

func (h *Handler) render(c *gin.Context) {
	xml, err := h.build()
	if err != nil {
		c.String(500, "error generating sitemap")
		return
	}
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(200, xml)
}

func (h *Handler) build() (string, error) {
	urls := []sitemapURL{{
		Loc: h.webURL, LastMod: time.Now(),
		ChangeFreq: "daily", Priority: 1.0,
	}}

	var users []models.UserModel
	if err := h.db.Select("username, updated_at").Find(&users).Error; err != nil {
		return "", err
	}
	for _, u := range users {
		urls = append(urls, sitemapURL{
			Loc:        fmt.Sprintf("%s/@%s", h.webURL, u.Username),
			LastMod:    u.UpdatedAt,
			ChangeFreq: "daily",
			Priority:   0.6,
		})
	}

	type postRow struct {
		URLSlug   string
		Username  string
		UpdatedAt time.Time
	}
	var posts []postRow
	err := h.db.Table("posts").
		Select("posts.url_slug, posts.updated_at, users.username").
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.is_private = FALSE AND posts.is_temp = FALSE AND posts.deleted_at IS NULL").
		Order("posts.released_at DESC").
		Find(&posts).Error
	if err != nil {
		return "", err
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:        fmt.Sprintf("%s/@%s/%s", h.webURL, p.Username, p.URLSlug),
			LastMod:    p.UpdatedAt,
			ChangeFreq: "weekly",
			Priority:   0.8,
		})
	}

	return renderXML(urls), nil
}

func renderXML(urls []sitemapURL) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	for _, u := range urls {
		fmt.Fprintf(&b, `  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, escapeXML(u.Loc), u.LastMod.Format("2006-01-02"), u.ChangeFreq, u.Priority)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
