package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// ValidateMarkdown checks that a string parses as Markdown. Goldmark is very
// permissive, so this is a basic structural check for memo prose.
func ValidateMarkdown(input string) bool {
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(input))
	return parser.Parse(reader) != nil
}

// HTMLToText strips markup from a business description. Data vendors ship
// summaries as either plain text or HTML fragments; the analyst prompt wants
// plain prose.
func HTMLToText(input string) string {
	if !strings.Contains(input, "<") {
		return strings.TrimSpace(input)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.TrimSpace(input)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
