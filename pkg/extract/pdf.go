// Package extract pulls chunkable text out of uploaded documents.
package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// Page is the text of one document page. Numbering is 1-based.
type Page struct {
	Number int
	Text   string
}

// PDFPages extracts per-page plain text from the PDF at path. Pages
// without extractable text are kept with empty text so numbering stays
// aligned with the source document; a PDF with no extractable text on
// any page fails, since nothing downstream could be ingested from it.
func PDFPages(path string) ([]Page, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document %s: %w", path, types.ErrNotFound)
		}
		return nil, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		// The file exists but cannot be parsed as a PDF. That is bad
		// caller input, not an infrastructure failure.
		return nil, types.Validationf("opening pdf %s: %v", path, err)
	}
	defer f.Close()

	var pages []Page
	hasText := false
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		text = strings.TrimSpace(text)
		if text != "" {
			hasText = true
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if !hasText {
		return nil, types.Validationf("pdf %s contains no extractable text", path)
	}
	return pages, nil
}
