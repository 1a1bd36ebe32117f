package tabular

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedWorkbook is reported for legacy binary .xls workbooks.
var ErrUnsupportedWorkbook = errors.New("legacy .xls workbooks are not supported")

// readWorkbook returns every row of the first sheet. Rows are as wide as
// their last non-empty cell.
func readWorkbook(path string) ([]RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	out := make([]RawRow, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		out = append(out, RowFromStrings(r))
	}
	return out, nil
}
