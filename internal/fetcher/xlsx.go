package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is one named worksheet read as string rows.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadXLSXSheets opens the workbook once and reads the named sheets in the
// order given. Names not present in the workbook are returned in missing.
func ReadXLSXSheets(path string, names []string) (sheets []Sheet, missing []string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}

	for _, name := range names {
		sheet, ok := f.Sheet[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Rows: sheetRows(sheet)})
	}

	return sheets, missing, nil
}

func sheetRows(sheet *xlsx.Sheet) [][]string {
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
