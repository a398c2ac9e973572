package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// Render converts post markdown to HTML for the feeds. On a conversion
// error the raw markdown is returned rather than nothing.
func Render(md string) string {
	var buf bytes.Buffer
	if err := engine.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return buf.String()
}
