// Package render turns stored article bodies into display HTML.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/mx-space/press/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// Authors are trusted admins, so raw HTML inside markdown is kept.
var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(),
		htmlrenderer.WithXHTML(),
	),
)

// HTML returns content as HTML. Markdown is converted; anything else is assumed
// to be HTML already.
func HTML(content, format string) string {
	if format != models.ContentFormatMarkdown {
		return content
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}
	var out bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &out); err != nil {
		return template.HTMLEscapeString(text)
	}
	return out.String()
}
