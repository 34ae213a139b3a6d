package services

import (
	"context"
	"fmt"
	"strings"

	"document-vector-platform/models"

	"github.com/google/uuid"
)

// BuildOptions controls chunk building. MinChineseChars and
// SummaryColumns only apply to tabular sources.
type BuildOptions struct {
	EnableSummary   bool
	MinChineseChars int
	SummaryColumns  []string
}

// ChunkBuilder turns a source file into an ordered chunk sequence.
// Implementations report parsing progress as (current, total) units.
type ChunkBuilder interface {
	Build(ctx context.Context, path string, opts BuildOptions, report func(current, total int)) ([]models.Chunk, error)
}

// PDFChunkBuilder produces one chunk per non-empty page.
type PDFChunkBuilder struct {
	extractor  *PDFExtractor
	summarizer Summarizer
}

func NewPDFChunkBuilder(summarizer Summarizer) *PDFChunkBuilder {
	return &PDFChunkBuilder{
		extractor:  NewPDFExtractor(),
		summarizer: summarizer,
	}
}

func (b *PDFChunkBuilder) Build(ctx context.Context, path string, opts BuildOptions, report func(current, total int)) ([]models.Chunk, error) {
	pages, err := b.extractor.ExtractPages(ctx, path, report)
	if err != nil {
		return nil, err
	}
	return b.ChunkPages(ctx, pages, opts), nil
}

// ChunkPages converts extracted pages into chunks. Pages whose trimmed
// content is empty are skipped entirely: no chunk, no id consumed.
// A summarizer failure never aborts the page; the failure is recorded in
// the summary text instead.
func (b *PDFChunkBuilder) ChunkPages(ctx context.Context, pages []Page, opts BuildOptions) []models.Chunk {
	var chunks []models.Chunk

	for _, page := range pages {
		content := strings.Join(page.Paragraphs, "\n\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		var summary string
		if opts.EnableSummary && b.summarizer != nil {
			s, err := b.summarizer.Summarize(ctx, content, 100, 200)
			if err != nil {
				summary = fmt.Sprintf("summary generation failed: %v", err)
			} else {
				summary = strings.TrimSpace(s)
			}
		} else {
			summary = truncateRunes(content, 200)
		}

		chunks = append(chunks, models.Chunk{
			ChunkID: uuid.NewString(),
			Content: content,
			Summary: summary,
			Metadata: map[string]any{
				"page_number": page.Number,
				"type":        "pdf_page",
			},
		})
	}

	return chunks
}
