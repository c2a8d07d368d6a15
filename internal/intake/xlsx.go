package intake

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetOptions selects which part of a workbook to read.
type SheetOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // header rows to skip
}

// ReadSheet reads one sheet of an XLSX workbook into string rows for the
// keyword mapper. Exported form data usually arrives as a two-column
// label/value sheet, but any layout MapRows understands works.
func ReadSheet(path string, opts SheetOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: open xlsx %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.Value
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func pickSheet(f *xlsx.File, opts SheetOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("intake: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("intake: sheet index %d out of range (workbook has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
