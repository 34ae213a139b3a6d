package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row of a spreadsheet: its 0-based index among data
// rows, the sheet's column names in sheet order, and the cell values
// keyed by column name. Missing cells are empty strings.
type Row struct {
	Index   int
	Columns []string
	Values  map[string]string
}

// ExcelExtractor reads ordered rows from the first sheet of a workbook.
// The first row is treated as the header.
type ExcelExtractor struct{}

func NewExcelExtractor() *ExcelExtractor {
	return &ExcelExtractor{}
}

// ExtractRows reads the data rows, reporting (current, total) through
// report after each row.
func (e *ExcelExtractor) ExtractRows(ctx context.Context, path string, report func(current, total int)) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	columns := make([]string, 0, len(raw[0]))
	for i, name := range raw[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		columns = append(columns, name)
	}

	total := len(raw) - 1
	rows := make([]Row, 0, total)
	for i, cells := range raw[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values := make(map[string]string, len(columns))
		for j, name := range columns {
			if j < len(cells) {
				values[name] = cells[j]
			} else {
				values[name] = ""
			}
		}
		rows = append(rows, Row{Index: i, Columns: columns, Values: values})
		if report != nil {
			report(i+1, total)
		}
	}

	return rows, nil
}
