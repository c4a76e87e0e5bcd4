package listener

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"tariffbench/internal"
	"tariffbench/internal/config"
	"tariffbench/internal/storage"
)

func TestExportProcessedWritesCSVAndLog(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg, _ := config.Load()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.LogPath = filepath.Join(dir, "data", "log.xlsx")

	doc, err := db.UpsertDocument("imap", "msg-1", "Invoice 42", "billing@acme.example", "2024-07-01T00:00:00Z", "abc", filepath.Join(dir, "msg-1.eml"), "processed")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	item := internal.LineItem{
		Invoice: "INV-42", InvoiceDate: "2024-07-01", Line: 1,
		Description: "Electric motor", HTSCode: "850110",
		TariffResult: "850110 | Motors | 45%",
	}
	if _, err := db.InsertLineItem(doc.ID, item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	svc := NewService(db, cfg)
	if err := svc.exportProcessed("imap"); err != nil {
		t.Fatalf("export: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(cfg.OutputDir, "listener"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("listener output dir: %v entries=%v", err, entries)
	}
	if !strings.HasSuffix(entries[0].Name(), ".csv") {
		t.Fatalf("output file = %q", entries[0].Name())
	}

	f, err := excelize.OpenFile(cfg.LogPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d log rows", len(rows))
	}

	lastAppend, err := db.GetMetadata("last_log_append")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if lastAppend == nil || !strings.Contains(*lastAppend, "appended=1 total=1") {
		t.Fatalf("last_log_append = %v", lastAppend)
	}

	updated, err := db.MustDocumentBySourceRef("imap", "msg-1")
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if updated.Status != "exported" {
		t.Fatalf("status = %q", updated.Status)
	}
}

func TestExportProcessedSkipsOtherSources(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg, _ := config.Load()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.LogPath = filepath.Join(dir, "data", "log.xlsx")

	_, err = db.UpsertDocument("gmail", "msg-2", "Invoice 7", "a@b.c", "2024-07-02T00:00:00Z", "abc", filepath.Join(dir, "msg-2.eml"), "processed")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	svc := NewService(db, cfg)
	if err := svc.exportProcessed("imap"); err != nil {
		t.Fatalf("export: %v", err)
	}

	updated, err := db.MustDocumentBySourceRef("gmail", "msg-2")
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if updated.Status != "processed" {
		t.Fatalf("status = %q", updated.Status)
	}
	if _, err := os.Stat(cfg.LogPath); !os.IsNotExist(err) {
		t.Fatal("log should not exist")
	}
}
