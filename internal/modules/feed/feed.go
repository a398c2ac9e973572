package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/modules/tag"
	"github.com/veloghq/velog-server/internal/pkg/markdown"
	"gorm.io/gorm"
)

const itemLimit = 20

// Handler serves RSS and Atom feeds for the site, a single author, or a
// tag. Tag feeds resolve aliases the same way the tag listings do.
type Handler struct {
	db     *gorm.DB
	tags   *tag.Service
	webURL string
}

func NewHandler(db *gorm.DB, tags *tag.Service, webURL string) *Handler {
	return &Handler{db: db, tags: tags, webURL: webURL}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/feed")

	g.GET("", h.siteFeed)
	g.GET("/user/:username", h.userFeed)
	g.GET("/tag/:name", h.tagFeed)
}

type feedItem struct {
	Title   string
	Link    string
	GUID    string
	PubDate time.Time
	Content string
}

func (h *Handler) siteFeed(c *gin.Context) {
	var posts []models.PostModel
	err := h.db.Preload("User").
		Where("is_private = FALSE AND is_temp = FALSE").
		Order("released_at DESC, id DESC").
		Limit(itemLimit).
		Find(&posts).Error
	if err != nil {
		c.String(500, "feed unavailable")
		return
	}
	h.render(c, "velog", "Stories from velog writers", h.webURL, posts)
}

func (h *Handler) userFeed(c *gin.Context) {
	username := c.Param("username")

	var user models.UserModel
	if err := h.db.Where("username = ?", username).First(&user).Error; err != nil {
		c.String(404, "user not found")
		return
	}

	var posts []models.PostModel
	err := h.db.Preload("User").
		Where("user_id = ? AND is_private = FALSE AND is_temp = FALSE", user.ID).
		Order("released_at DESC, id DESC").
		Limit(itemLimit).
		Find(&posts).Error
	if err != nil {
		c.String(500, "feed unavailable")
		return
	}

	title := fmt.Sprintf("@%s - velog", user.Username)
	h.render(c, title, user.ShortBio, fmt.Sprintf("%s/@%s", h.webURL, user.Username), posts)
}

func (h *Handler) tagFeed(c *gin.Context) {
	name := c.Param("name")

	posts, err := h.tags.ListPosts(name, "", itemLimit, "", false)
	if err != nil {
		c.String(404, "tag not found")
		return
	}

	title := fmt.Sprintf("#%s - velog", name)
	link := fmt.Sprintf("%s/tags/%s", h.webURL, name)
	h.render(c, title, fmt.Sprintf("Posts tagged %s", name), link, posts)
}

func (h *Handler) render(c *gin.Context, title, desc, link string, posts []models.PostModel) {
	items := make([]feedItem, len(posts))
	for i, p := range posts {
		username := ""
		if p.User != nil {
			username = p.User.Username
		}
		items[i] = feedItem{
			Title:   p.Title,
			Link:    fmt.Sprintf("%s/@%s/%s", h.webURL, username, p.URLSlug),
			GUID:    p.ID,
			PubDate: p.ReleasedAt,
			Content: markdown.Render(p.Body),
		}
	}

	switch c.DefaultQuery("type", "rss") {
	case "atom":
		c.Header("Content-Type", "application/atom+xml; charset=utf-8")
		c.String(200, buildAtom(title, desc, link, items))
	default:
		c.Header("Content-Type", "application/rss+xml; charset=utf-8")
		c.String(200, buildRSS(title, desc, link, items))
	}
}

func buildRSS(title, desc, link string, items []feedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>%s</title>
    <link>%s</link>
    <description>%s</description>
    <lastBuildDate>%s</lastBuildDate>
`, escapeXML(title), escapeXML(link), escapeXML(desc), time.Now().Format(time.RFC1123Z))

	for _, item := range items {
		fmt.Fprintf(&b, `    <item>
      <title>%s</title>
      <link>%s</link>
      <guid>%s</guid>
      <pubDate>%s</pubDate>
      <description><![CDATA[%s]]></description>
    </item>
`, escapeXML(item.Title), escapeXML(item.Link), item.GUID,
			item.PubDate.Format(time.RFC1123Z), item.Content)
	}

	b.WriteString(`  </channel>
</rss>`)
	return b.String()
}

func buildAtom(title, desc, link string, items []feedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>%s</title>
  <subtitle>%s</subtitle>
  <link href="%s"/>
  <updated>%s</updated>
  <id>%s</id>
`, escapeXML(title), escapeXML(desc), escapeXML(link), time.Now().Format(time.RFC3339), escapeXML(link))

	for _, item := range items {
		fmt.Fprintf(&b, `  <entry>
    <title>%s</title>
    <link href="%s"/>
    <id>%s</id>
    <updated>%s</updated>
    <content type="html"><![CDATA[%s]]></content>
  </entry>
`, escapeXML(item.Title), escapeXML(item.Link), item.GUID,
			item.PubDate.Format(time.RFC3339), item.Content)
	}

	b.WriteString(`</feed>`)
	return b.String()
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
