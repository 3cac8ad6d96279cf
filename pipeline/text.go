package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// PlainText renders the HTML content of a newsitem as text. Paragraphs,
// list items and line breaks end a line; runs of whitespace collapse.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse html")
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
