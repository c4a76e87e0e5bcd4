package storage

import (
	"path/filepath"
	"testing"

	"tariffbench/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertDocumentIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.UpsertDocument("upload", "inv-001.pdf", "", "", "", "abc", "data/raw/inv-001.pdf", "fetched")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := db.UpsertDocument("upload", "inv-001.pdf", "", "", "", "def", "data/raw/inv-001.pdf", "fetched")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if second.Hash != "def" {
		t.Fatalf("hash not updated: %q", second.Hash)
	}
}

func TestLineItemRoundTrip(t *testing.T) {
	db := openTestDB(t)

	doc, err := db.UpsertDocument("upload", "inv-002.pdf", "", "", "", "abc", "data/raw/inv-002.pdf", "fetched")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item := internal.LineItem{
		Invoice:      "INV-7",
		InvoiceDate:  "2024-05-01",
		Line:         1,
		Description:  "Electric motor",
		Qty:          "2",
		Price:        "10.50",
		HTSCode:      "850110",
		TariffResult: "850110 | Motors | 45%",
	}
	if _, err := db.InsertLineItem(doc.ID, item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	items, err := db.ListLineItems(doc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0] != item {
		t.Fatalf("round trip mismatch: %+v", items[0])
	}

	if err := db.ClearDocumentLineItems(doc.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, err = db.ListLineItems(doc.ID)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestDocumentStatusTransitions(t *testing.T) {
	db := openTestDB(t)

	doc, err := db.UpsertDocument("imap", "msg-1", "Invoice 77", "a@b.c", "2024-05-01T00:00:00Z", "abc", "data/raw/msg-1.eml", "fetched")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pending, err := db.ListDocumentsByStatus("fetched", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != doc.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.UpdateDocumentStatus(doc.ID, "processed"); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, err = db.ListDocumentsByStatus("fetched", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending, got %d", len(pending))
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	value, err := db.GetMetadata("cursor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil, got %q", *value)
	}

	if err := db.SetMetadata("cursor", "100"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMetadata("cursor", "200"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	value, err = db.GetMetadata("cursor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value == nil || *value != "200" {
		t.Fatalf("got %v", value)
	}
}
