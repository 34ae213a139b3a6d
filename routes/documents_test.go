package routes

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"document-vector-platform/internal/config"
	"document-vector-platform/internal/queue"

	"github.com/gin-gonic/gin"
)

func formContext(t *testing.T, form string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("POST", "/api/v1/documents", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestApplyIngestFormDefaults(t *testing.T) {
	cfg := &config.Config{MinChineseChars: 250}
	var payload queue.VectorizePayload

	applyIngestForm(formContext(t, ""), cfg, &payload)

	// Summarization is opt-in; a bare upload must not trigger one
	// generation call per chunk.
	if payload.EnableSummary {
		t.Error("enable_summary default = true, want false")
	}
	if payload.MinChineseChars != 250 {
		t.Errorf("min_chinese_chars = %d, want config default 250", payload.MinChineseChars)
	}
	if payload.SummaryColumns != nil {
		t.Errorf("summary_columns = %v, want nil", payload.SummaryColumns)
	}
}

func TestApplyIngestFormExplicitValues(t *testing.T) {
	cfg := &config.Config{MinChineseChars: 250}
	var payload queue.VectorizePayload

	applyIngestForm(formContext(t,
		"enable_summary=true&min_chinese_chars=100&summary_columns=title,%20note"), cfg, &payload)

	if !payload.EnableSummary {
		t.Error("enable_summary = false, want true when requested")
	}
	if payload.MinChineseChars != 100 {
		t.Errorf("min_chinese_chars = %d, want 100", payload.MinChineseChars)
	}
	if len(payload.SummaryColumns) != 2 || payload.SummaryColumns[0] != "title" || payload.SummaryColumns[1] != "note" {
		t.Errorf("summary_columns = %v, want [title note]", payload.SummaryColumns)
	}
}

func TestLooksLikePDF(t *testing.T) {
	dir := t.TempDir()

	pdfPath := filepath.Join(dir, "real.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.7\nsome body"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if !looksLikePDF(pdfPath) {
		t.Error("valid PDF header not recognized")
	}

	fakePath := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(fakePath, []byte("MZ executable content"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if looksLikePDF(fakePath) {
		t.Error("non-PDF content accepted as PDF")
	}

	shortPath := filepath.Join(dir, "short.pdf")
	if err := os.WriteFile(shortPath, []byte("%P"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if looksLikePDF(shortPath) {
		t.Error("truncated header accepted as PDF")
	}

	if looksLikePDF(filepath.Join(dir, "missing.pdf")) {
		t.Error("missing file accepted as PDF")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"  ", 0},
		{"a", 1},
		{"a,b, c ,", 3},
	}
	for _, tc := range cases {
		if got := splitCSV(tc.in); len(got) != tc.want {
			t.Errorf("splitCSV(%q) = %v, want %d entries", tc.in, got, tc.want)
		}
	}
}
