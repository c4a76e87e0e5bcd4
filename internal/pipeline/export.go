package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"tariffbench/internal"
)

// ResultColumns is the fixed column order of the result table everywhere it
// surfaces: CSV export, XLSX log, CLI output.
var ResultColumns = []string{
	"Invoice", "Invoice Date", "Line", "Description", "Part Number", "Brand",
	"Qty", "Price", "Ext. Price", "HTS Code", "Bahamas Tariff Result",
}

func resultRow(item internal.LineItem) []string {
	return []string{
		item.Invoice,
		item.InvoiceDate,
		strconv.Itoa(item.Line),
		item.Description,
		item.PartNumber,
		item.Brand,
		item.Qty,
		item.Price,
		item.ExtPrice,
		item.HTSCode,
		item.TariffResult,
	}
}

// ExportCSV writes the result table to outputPath, header first, one row per
// line item in table order.
func ExportCSV(items []internal.LineItem, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ResultColumns); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.Write(resultRow(item)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
