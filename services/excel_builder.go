package services

import (
	"context"
	"strings"

	"document-vector-platform/models"

	"github.com/google/uuid"
)

const defaultMinChineseChars = 250

// ExcelChunkBuilder groups spreadsheet rows into chunks by accumulated
// CJK-ideograph weight. Rows whose own weight reaches the threshold
// become standalone chunks; lighter rows accumulate greedily until the
// running total crosses it.
type ExcelChunkBuilder struct {
	extractor  *ExcelExtractor
	summarizer Summarizer
}

func NewExcelChunkBuilder(summarizer Summarizer) *ExcelChunkBuilder {
	return &ExcelChunkBuilder{
		extractor:  NewExcelExtractor(),
		summarizer: summarizer,
	}
}

func (b *ExcelChunkBuilder) Build(ctx context.Context, path string, opts BuildOptions, report func(current, total int)) ([]models.Chunk, error) {
	rows, err := b.extractor.ExtractRows(ctx, path, report)
	if err != nil {
		return nil, err
	}
	return b.ChunkRows(ctx, rows, opts), nil
}

// renderRow formats a row as "column: value" lines, skipping empty
// cells. Column order follows the sheet header.
func renderRow(row Row, columns []string) string {
	var lines []string
	for _, col := range columns {
		v := strings.TrimSpace(row.Values[col])
		if v == "" {
			continue
		}
		lines = append(lines, col+": "+v)
	}
	return strings.Join(lines, "\n")
}

type rowGroup struct {
	texts    []string
	rows     []Row
	weight   int
	startRow int
	endRow   int
}

// ChunkRows applies the weight-based grouping. The threshold defaults
// to 250 CJK characters when opts.MinChineseChars is zero or negative.
func (b *ExcelChunkBuilder) ChunkRows(ctx context.Context, rows []Row, opts BuildOptions) []models.Chunk {
	threshold := opts.MinChineseChars
	if threshold <= 0 {
		threshold = defaultMinChineseChars
	}

	var chunks []models.Chunk
	var buf rowGroup

	flush := func() {
		if len(buf.texts) == 0 {
			return
		}
		chunks = append(chunks, b.groupChunk(ctx, buf, opts, false))
		buf = rowGroup{}
	}

	for _, row := range rows {
		text := renderRow(row, row.Columns)
		if text == "" {
			continue
		}
		weight := countChineseChars(text)

		if weight >= threshold {
			// Heavy rows stand alone; whatever accumulated before
			// them is flushed first to preserve row order.
			flush()
			single := rowGroup{
				texts:    []string{text},
				rows:     []Row{row},
				weight:   weight,
				startRow: row.Index,
				endRow:   row.Index,
			}
			chunks = append(chunks, b.groupChunk(ctx, single, opts, true))
			continue
		}

		if len(buf.texts) == 0 {
			buf.startRow = row.Index
		}
		buf.texts = append(buf.texts, text)
		buf.rows = append(buf.rows, row)
		buf.weight += weight
		buf.endRow = row.Index

		if buf.weight >= threshold {
			flush()
		}
	}
	flush()

	return chunks
}

func (b *ExcelChunkBuilder) groupChunk(ctx context.Context, g rowGroup, opts BuildOptions, single bool) models.Chunk {
	content := strings.Join(g.texts, "\n\n")
	summary := b.summarizeGroup(ctx, g, opts, content)

	metadata := map[string]any{
		"start_row":     g.startRow,
		"end_row":       g.endRow,
		"row_count":     len(g.rows),
		"chinese_chars": g.weight,
	}
	if single {
		metadata["type"] = "excel_row"
		metadata["row_number"] = g.startRow
		// Every source column is exposed, empty cells included, so the
		// payload preserves the full row shape.
		row := g.rows[0]
		for _, col := range row.Columns {
			metadata["col_"+col] = row.Values[col]
		}
	} else {
		metadata["type"] = "excel_chunk"
	}

	return models.Chunk{
		ChunkID:  uuid.NewString(),
		Content:  content,
		Summary:  summary,
		Metadata: metadata,
	}
}

// summarizeGroup picks the chunk summary. Designated summary columns
// take priority; configured but empty columns degrade straight to the
// content prefix, never to the summarizer.
func (b *ExcelChunkBuilder) summarizeGroup(ctx context.Context, g rowGroup, opts BuildOptions, content string) string {
	if len(opts.SummaryColumns) > 0 {
		var rowSummaries []string
		for _, row := range g.rows {
			var parts []string
			for _, col := range opts.SummaryColumns {
				if v := strings.TrimSpace(row.Values[col]); v != "" {
					parts = append(parts, v)
				}
			}
			if len(parts) > 0 {
				rowSummaries = append(rowSummaries, strings.Join(parts, " "))
			}
		}
		if len(rowSummaries) > 0 {
			return strings.Join(rowSummaries, "\n")
		}
		return truncateRunes(content, 200)
	}

	if opts.EnableSummary && b.summarizer != nil {
		// A failed summarizer degrades to the content prefix; the
		// inline failure marker is a paginated-document behavior only.
		s, err := b.summarizer.Summarize(ctx, content, 50, 100)
		if err == nil {
			return strings.TrimSpace(s)
		}
	}

	return truncateRunes(content, 200)
}
