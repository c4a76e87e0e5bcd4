package connectors

import (
	"path/filepath"
	"testing"

	"tariffbench/internal"
	"tariffbench/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

func TestFetchAndStoreSkipsKnownMessages(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	conn := stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "msg-1", Subject: "Invoice 1", Raw: []byte("raw one")},
		{Provider: "imap", MessageID: "msg-2", Subject: "Invoice 2", Raw: []byte("raw two")},
	}}
	svc := NewFetchService(db, filepath.Join(dir, "raw"), conn)

	first, err := svc.FetchAndStore("INBOX", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if first.Fetched != 2 || first.Stored != 2 || first.Skipped != 0 {
		t.Fatalf("first = %+v", first)
	}

	second, err := svc.FetchAndStore("INBOX", 10)
	if err != nil {
		t.Fatalf("fetch again: %v", err)
	}
	if second.Fetched != 2 || second.Stored != 0 || second.Skipped != 2 {
		t.Fatalf("second = %+v", second)
	}

	pending, err := db.ListDocumentsByStatus("fetched", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending documents", len(pending))
	}
}
