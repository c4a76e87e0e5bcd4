package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"tariffbench/internal"
)

const logSheet = "Sheet1"

// AppendLog appends the given line items to the running XLSX log, creating it
// with a header row on first use. Existing rows are never modified. Appending
// nothing leaves the file untouched and reports the current row count.
func AppendLog(items []internal.LineItem, logPath string) (internal.SaveResult, error) {
	existing, err := readLogRows(logPath)
	if err != nil {
		return internal.SaveResult{}, err
	}

	result := internal.SaveResult{
		SavedAt:  time.Now(),
		Appended: len(items),
		LogRows:  len(existing) + len(items),
		LogPath:  logPath,
	}
	if len(items) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return internal.SaveResult{}, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if sheet != logSheet {
		f.SetSheetName(sheet, logSheet)
		sheet = logSheet
	}

	writeRow := func(r int, cells []string) {
		for i, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(i+1, r)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	writeRow(1, ResultColumns)
	r := 2
	for _, row := range existing {
		writeRow(r, row)
		r++
	}
	for _, item := range items {
		writeRow(r, resultRow(item))
		r++
	}

	if err := f.SaveAs(logPath); err != nil {
		return internal.SaveResult{}, fmt.Errorf("save log: %w", err)
	}
	return result, nil
}

// readLogRows returns the data rows of the existing log, header excluded. A
// missing file means an empty log.
func readLogRows(logPath string) ([][]string, error) {
	if _, err := os.Stat(logPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	out := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(ResultColumns))
		copy(cells, row)
		out = append(out, cells)
	}
	return out, nil
}
