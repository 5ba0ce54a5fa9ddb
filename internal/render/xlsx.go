package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// WriteXLSX writes one worksheet per table.
func WriteXLSX(w io.Writer, tables ...Table) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, t := range tables {
		sheet := sheetName(t, i)
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("creating sheet %s: %w", sheet, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		header := make([]any, len(t.Headers))
		for j, h := range t.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("writing header of %s: %w", sheet, err)
		}
		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			values := append([]any(nil), row...)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("writing row %d of %s: %w", r+1, sheet, err)
			}
		}
	}

	if len(tables) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("removing default sheet: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func sheetName(t Table, i int) string {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("table%d", i+1)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
