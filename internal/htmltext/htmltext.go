// Package htmltext reduces HTML fragments to their plain-text content.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Strip returns the text content of an HTML fragment. Parsing failures fall
// back to removing anything that looks like a tag, so the result is always
// safe to display as plain text.
func Strip(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
	}
	return strings.TrimSpace(doc.Text())
}
