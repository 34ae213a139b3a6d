package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, minChars, maxChars int) (string, error) {
	f.calls++
	return f.summary, f.err
}

func TestChunkPagesSkipsEmptyPages(t *testing.T) {
	builder := NewPDFChunkBuilder(nil)

	pages := []Page{
		{Number: 1, Paragraphs: []string{strings.Repeat("a", 50)}},
		{Number: 2, Paragraphs: nil},
		{Number: 3, Paragraphs: []string{"   "}},
		{Number: 4, Paragraphs: []string{strings.Repeat("b", 300)}},
	}

	chunks := builder.ChunkPages(context.Background(), pages, BuildOptions{})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := chunks[0].Metadata["page_number"]; got != 1 {
		t.Errorf("first chunk page_number = %v, want 1", got)
	}
	if got := chunks[1].Metadata["page_number"]; got != 4 {
		t.Errorf("second chunk page_number = %v, want 4", got)
	}
	for _, c := range chunks {
		if c.Metadata["type"] != "pdf_page" {
			t.Errorf("chunk type = %v, want pdf_page", c.Metadata["type"])
		}
		if c.ChunkID == "" {
			t.Errorf("chunk id must not be empty")
		}
	}
}

func TestChunkPagesJoinsParagraphs(t *testing.T) {
	builder := NewPDFChunkBuilder(nil)

	pages := []Page{{Number: 1, Paragraphs: []string{"first para", "second para"}}}
	chunks := builder.ChunkPages(context.Background(), pages, BuildOptions{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "first para\n\nsecond para" {
		t.Errorf("content = %q", chunks[0].Content)
	}
}

func TestChunkPagesTruncatedSummaryWithoutSummarizer(t *testing.T) {
	builder := NewPDFChunkBuilder(nil)

	long := strings.Repeat("x", 500)
	pages := []Page{{Number: 1, Paragraphs: []string{long}}}

	chunks := builder.ChunkPages(context.Background(), pages, BuildOptions{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := len([]rune(chunks[0].Summary)); got != 200 {
		t.Errorf("summary length = %d, want 200", got)
	}
	if !strings.HasPrefix(long, chunks[0].Summary) {
		t.Errorf("summary must be a content prefix")
	}
}

func TestChunkPagesSummarizerFailureIsRecorded(t *testing.T) {
	summarizer := &fakeSummarizer{err: errors.New("quota exceeded")}
	builder := NewPDFChunkBuilder(summarizer)

	pages := []Page{{Number: 1, Paragraphs: []string{"some page text"}}}
	chunks := builder.ChunkPages(context.Background(), pages, BuildOptions{EnableSummary: true})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Summary, "summary generation failed:") {
		t.Errorf("summary = %q, want failure marker", chunks[0].Summary)
	}
	if !strings.Contains(chunks[0].Summary, "quota exceeded") {
		t.Errorf("summary should carry the underlying error, got %q", chunks[0].Summary)
	}
}

func TestChunkPagesUsesSummarizer(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "a short summary"}
	builder := NewPDFChunkBuilder(summarizer)

	pages := []Page{
		{Number: 1, Paragraphs: []string{"page one"}},
		{Number: 2, Paragraphs: []string{"page two"}},
	}
	chunks := builder.ChunkPages(context.Background(), pages, BuildOptions{EnableSummary: true})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if summarizer.calls != 2 {
		t.Errorf("summarizer calls = %d, want 2", summarizer.calls)
	}
	if chunks[0].Summary != "a short summary" {
		t.Errorf("summary = %q", chunks[0].Summary)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("汉字很多"+strings.Repeat("字", 300), 200); len([]rune(got)) != 200 {
		t.Errorf("truncateRunes length = %d, want 200", len([]rune(got)))
	}
	if got := truncateRunes("short", 200); got != "short" {
		t.Errorf("truncateRunes(short) = %q", got)
	}
}
