package services

import (
	"context"
	"fmt"
	"strings"

	"document-vector-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// Page is one extracted page: its 1-based number and the paragraphs of
// text found on it.
type Page struct {
	Number     int
	Paragraphs []string
}

// PDFExtractor pulls per-page text out of a PDF file.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages reads every page of the file, reporting (current, total)
// through report after each page. A page that fails text extraction is
// returned with no paragraphs rather than aborting the document.
func (e *PDFExtractor) ExtractPages(ctx context.Context, path string, report func(current, total int)) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			if report != nil {
				report(i, total)
			}
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			pages = append(pages, Page{Number: i})
			if report != nil {
				report(i, total)
			}
			continue
		}

		pages = append(pages, Page{Number: i, Paragraphs: splitParagraphs(text)})
		if report != nil {
			report(i, total)
		}
	}

	return pages, nil
}

// splitParagraphs breaks raw page text into non-empty lines.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return paragraphs
}
