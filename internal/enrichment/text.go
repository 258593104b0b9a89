package enrichment

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxChars caps the text sent to the model.
const DefaultMaxChars = 12000

// ExtractText returns the readable text of an HTML document with scripts,
// styles, and navigation chrome removed and whitespace collapsed.
func ExtractText(html []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, svg, iframe").Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	var b strings.Builder
	collectText(root, &b)
	text := strings.Join(strings.Fields(b.String()), " ")
	if maxChars > 0 {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text, nil
}

// collectText writes text nodes in document order, separated so adjacent
// block elements do not run together.
func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
			b.WriteByte(' ')
			return
		}
		collectText(c, b)
	})
}
