package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func makeRows(texts []string) []Row {
	columns := []string{"内容"}
	rows := make([]Row, len(texts))
	for i, text := range texts {
		rows[i] = Row{
			Index:   i,
			Columns: columns,
			Values:  map[string]string{"内容": text},
		}
	}
	return rows
}

func cjkString(n int) string {
	return strings.Repeat("汉", n)
}

func TestChunkRowsGreedyAccumulation(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	// Weights 50 and 60 accumulate; 300 stands alone; the trailing 40 is
	// flushed at the end.
	rows := makeRows([]string{
		cjkString(50),
		cjkString(60),
		cjkString(300),
		cjkString(40),
	})

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{MinChineseChars: 250})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if got := chunks[0].Metadata["row_count"]; got != 2 {
		t.Errorf("first chunk row_count = %v, want 2", got)
	}
	if got := chunks[0].Metadata["type"]; got != "excel_chunk" {
		t.Errorf("first chunk type = %v, want excel_chunk", got)
	}

	if got := chunks[1].Metadata["type"]; got != "excel_row" {
		t.Errorf("heavy row type = %v, want excel_row", got)
	}
	if got := chunks[1].Metadata["row_number"]; got != 2 {
		t.Errorf("heavy row row_number = %v, want 2", got)
	}

	if got := chunks[2].Metadata["row_count"]; got != 1 {
		t.Errorf("trailing chunk row_count = %v, want 1", got)
	}

	total := 0
	for _, c := range chunks {
		total += c.Metadata["row_count"].(int)
	}
	if total != len(rows) {
		t.Errorf("row counts sum to %d, want %d", total, len(rows))
	}
}

func TestChunkRowsAccumulatedFlushAtThreshold(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	// 100 + 100 = 200 stays buffered; +100 crosses 250 and flushes.
	rows := makeRows([]string{cjkString(100), cjkString(100), cjkString(100)})

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{MinChineseChars: 250})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata["row_count"]; got != 3 {
		t.Errorf("row_count = %v, want 3", got)
	}
	if got := chunks[0].Metadata["start_row"]; got != 0 {
		t.Errorf("start_row = %v, want 0", got)
	}
	if got := chunks[0].Metadata["end_row"]; got != 2 {
		t.Errorf("end_row = %v, want 2", got)
	}
}

func TestChunkRowsSkipsEmptyRows(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	rows := makeRows([]string{cjkString(10), "", "   ", cjkString(10)})

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{MinChineseChars: 250})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata["row_count"]; got != 2 {
		t.Errorf("row_count = %v, want 2 (empty rows skipped)", got)
	}
}

func TestChunkRowsRendersColumnLines(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	rows := []Row{{
		Index:   0,
		Columns: []string{"name", "desc", "note"},
		Values:  map[string]string{"name": "widget", "desc": "a widget", "note": ""},
	}}

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := "name: widget\ndesc: a widget"
	if chunks[0].Content != want {
		t.Errorf("content = %q, want %q", chunks[0].Content, want)
	}
}

func TestChunkRowsSummaryColumns(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	rows := []Row{
		{
			Index:   0,
			Columns: []string{"title", "body"},
			Values:  map[string]string{"title": "first", "body": cjkString(20)},
		},
		{
			Index:   1,
			Columns: []string{"title", "body"},
			Values:  map[string]string{"title": "second", "body": cjkString(20)},
		},
	}

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{
		MinChineseChars: 250,
		SummaryColumns:  []string{"title"},
	})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Summary != "first\nsecond" {
		t.Errorf("summary = %q, want %q", chunks[0].Summary, "first\nsecond")
	}
}

func TestChunkRowsEmptySummaryColumnsFallBackToPrefix(t *testing.T) {
	// Configured summary columns with no values degrade to the content
	// prefix even when a summarizer is available.
	summarizer := &fakeSummarizer{summary: "should not be used"}
	builder := NewExcelChunkBuilder(summarizer)

	rows := makeRows([]string{cjkString(30)})
	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{
		MinChineseChars: 250,
		EnableSummary:   true,
		SummaryColumns:  []string{"missing_column"},
	})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer called %d times, want 0", summarizer.calls)
	}
	if !strings.HasPrefix(chunks[0].Content, chunks[0].Summary) {
		t.Errorf("summary should be a content prefix, got %q", chunks[0].Summary)
	}
}

func TestChunkRowsSummaryFallsBackToContentPrefix(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	rows := makeRows([]string{cjkString(300)})
	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{MinChineseChars: 250})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, chunks[0].Summary) {
		t.Errorf("summary should be a prefix of content without a summarizer")
	}
	if got := len([]rune(chunks[0].Summary)); got > 200 {
		t.Errorf("summary length = %d runes, want <= 200", got)
	}
}

func TestChunkRowsSingleRowMetadataColumns(t *testing.T) {
	builder := NewExcelChunkBuilder(nil)

	rows := []Row{{
		Index:   0,
		Columns: []string{"标题", "正文", "备注"},
		Values:  map[string]string{"标题": "产品", "正文": cjkString(300), "备注": ""},
	}}

	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{MinChineseChars: 250})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata["col_标题"]; got != "产品" {
		t.Errorf("col_标题 = %v, want 产品", got)
	}
	if _, ok := chunks[0].Metadata["col_正文"]; !ok {
		t.Errorf("expected col_正文 in single row metadata")
	}
	// Empty cells are exposed too; the row shape is preserved intact.
	if got, ok := chunks[0].Metadata["col_备注"]; !ok || got != "" {
		t.Errorf("col_备注 = %v (present=%v), want empty string present", got, ok)
	}
}

func TestChunkRowsSummarizerFailureTruncates(t *testing.T) {
	summarizer := &fakeSummarizer{err: errors.New("quota exceeded")}
	builder := NewExcelChunkBuilder(summarizer)

	rows := makeRows([]string{cjkString(300)})
	chunks := builder.ChunkRows(context.Background(), rows, BuildOptions{
		MinChineseChars: 250,
		EnableSummary:   true,
	})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if summarizer.calls != 1 {
		t.Errorf("summarizer calls = %d, want 1", summarizer.calls)
	}
	// Tabular chunks degrade to the content prefix on summarizer
	// failure, never to an inline error marker.
	if strings.Contains(chunks[0].Summary, "failed") {
		t.Errorf("summary = %q, want no failure marker", chunks[0].Summary)
	}
	if chunks[0].Summary != truncateRunes(chunks[0].Content, 200) {
		t.Errorf("summary = %q, want first-200-runes truncation of content", chunks[0].Summary)
	}
}

func TestCountChineseChars(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello world", 0},
		{"汉字", 2},
		{"mixed 汉字 and ascii 123", 2},
		{"标点。不算", 4},
	}
	for _, tc := range cases {
		if got := countChineseChars(tc.text); got != tc.want {
			t.Errorf("countChineseChars(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
