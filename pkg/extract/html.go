package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelectors are tried in order to find the main content area.
var blockSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// HTMLText extracts readable text from an HTML document. Paragraph-level
// elements become newline-separated blocks so the output chunks along
// paragraph boundaries.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	root := doc.Selection
	for _, selector := range blockSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			root = selected.First()
			break
		}
	}

	var blocks []string
	root.Find("p, h1, h2, h3, h4, h5, h6, li, pre, td").Each(func(_ int, sel *goquery.Selection) {
		if text := collapseSpace(sel.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	// Fallback to the whole body text when the document has no
	// block-level elements at all.
	if len(blocks) == 0 {
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		if text := collapseSpace(body.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}

	return strings.Join(blocks, "\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
