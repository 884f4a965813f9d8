// Package ingest holds the fetch-and-map adapters for the three content
// providers. Each adapter filters to the lookback window, truncates
// snippets, and degrades to partial results on per-feed errors.
package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const snippetLimit = 500

// truncateSnippet caps text to snippetLimit runes, appending an ellipsis.
func truncateSnippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit]) + "..."
}

// htmlToText flattens an HTML fragment to whitespace-normalized plain text.
// Feed summaries routinely arrive as markup.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
