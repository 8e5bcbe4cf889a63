// Package export builds xlsx workbooks for the list export endpoints.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Workbook renders the sheets into a single xlsx file.
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export: at least one sheet required")
	}
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, err
			}
		}
		if err := writeRow(f, name, 1, toAny(sheet.Headers)); err != nil {
			return nil, err
		}
		for rowIdx, row := range sheet.Rows {
			if err := writeRow(f, name, rowIdx+2, row); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ContentType is the MIME type list export responses are served with.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
