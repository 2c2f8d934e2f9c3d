package render

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtractor pulls plain-text spans out of PDF page ranges for
// section aggregation.
type TextExtractor struct{}

// NewTextExtractor returns the native PDF text extractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// PageRange extracts text from pages [first, first+length), 0-indexed,
// bounded by the document's page count. Pages that fail to extract are
// skipped.
func (*TextExtractor) PageRange(path string, first, length int) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	var parts []string

	for p := first; p < first+length && p < total; p++ {
		// ledongthuc/pdf pages are 1-indexed.
		page := reader.Page(p + 1)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text = strings.TrimSpace(text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
