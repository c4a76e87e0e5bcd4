package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestAppendLogCreatesAndGrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "log.xlsx")

	first, err := AppendLog(sampleItems(), path)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Appended != 2 || first.LogRows != 2 {
		t.Fatalf("first = %+v", first)
	}

	second, err := AppendLog(sampleItems()[:1], path)
	if err != nil {
		t.Fatalf("append again: %v", err)
	}
	if second.Appended != 1 || second.LogRows != 3 {
		t.Fatalf("second = %+v", second)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(logSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "Invoice" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][9] != "850110" || rows[3][9] != "850110" {
		t.Fatalf("code column = %q %q", rows[1][9], rows[3][9])
	}
}

func TestAppendLogNothingIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.xlsx")

	result, err := AppendLog(nil, path)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if result.Appended != 0 || result.LogRows != 0 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("log file should not exist")
	}

	if _, err := AppendLog(sampleItems(), path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	result, err = AppendLog(nil, path)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if result.Appended != 0 || result.LogRows != 2 {
		t.Fatalf("result = %+v", result)
	}
}
