package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestExtractRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"name", "desc"},
		{"widget", "a widget"},
		{"gadget"}, // short row, desc cell missing
	})

	extractor := NewExcelExtractor()
	rows, err := extractor.ExtractRows(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Index != 0 || rows[1].Index != 1 {
		t.Errorf("row indexes = %d,%d, want 0,1", rows[0].Index, rows[1].Index)
	}
	if got := rows[0].Values["name"]; got != "widget" {
		t.Errorf("name = %q, want widget", got)
	}
	if got := rows[1].Values["desc"]; got != "" {
		t.Errorf("missing cell = %q, want empty string", got)
	}
	if len(rows[0].Columns) != 2 || rows[0].Columns[0] != "name" {
		t.Errorf("columns = %v", rows[0].Columns)
	}
}

func TestExtractRowsBlankHeaderGetsPlaceholder(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"name", "", "note"},
		{"a", "b", "c"},
	})

	rows, err := NewExcelExtractor().ExtractRows(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0].Values["column_2"]; got != "b" {
		t.Errorf("column_2 = %q, want b", got)
	}
}

func TestExtractRowsHeaderOnly(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"name", "desc"}})

	rows, err := NewExcelExtractor().ExtractRows(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestExtractRowsReportsPerRow(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"name"},
		{"a"},
		{"b"},
		{"c"},
	})

	var calls [][2]int
	_, err := NewExcelExtractor().ExtractRows(context.Background(), path, func(current, total int) {
		calls = append(calls, [2]int{current, total})
	})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("report calls = %d, want one per data row", len(calls))
	}
	for i, call := range calls {
		if call[0] != i+1 || call[1] != 3 {
			t.Errorf("call %d = (%d, %d), want (%d, 3)", i, call[0], call[1], i+1)
		}
	}
}

func TestExtractRowsMissingFile(t *testing.T) {
	_, err := NewExcelExtractor().ExtractRows(context.Background(), "/nonexistent/file.xlsx", nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
