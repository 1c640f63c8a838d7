package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	htmlPolicy = newHTMLPolicy()

	entityRestorer = strings.NewReplacer("&#39;", "'", "&#34;", `"`)
)

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "br", "p")
	p.AllowAttrs("href", "target").OnElements("a")
	p.AllowStandardURLs()
	return p
}

// SanitizeText strips every tag from user supplied text before it is sent
// to the backend or rendered. Quotes survive unescaped.
func SanitizeText(raw string) string {
	return entityRestorer.Replace(textPolicy.Sanitize(raw))
}

// SanitizeHTML keeps a small formatting subset and drops everything else.
func SanitizeHTML(raw string) string {
	return htmlPolicy.Sanitize(raw)
}
