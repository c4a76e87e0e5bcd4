package internal

import "time"

type DocumentSource string

const (
	SourceUpload DocumentSource = "upload"
	SourceGmail  DocumentSource = "gmail"
	SourceIMAP   DocumentSource = "imap"
)

// LineItem is one extracted invoice row enriched with a predicted HTS code
// and the tariff lookup result. Every field except Line stays a string: the
// model's output is carried verbatim, no numeric parsing.
type LineItem struct {
	Invoice      string
	InvoiceDate  string
	Line         int
	Description  string
	PartNumber   string
	Brand        string
	Qty          string
	Price        string
	ExtPrice     string
	HTSCode      string
	TariffResult string
}

// InvoiceKey groups line items for per-invoice sequence numbering.
type InvoiceKey struct {
	Invoice     string
	InvoiceDate string
}

func (li LineItem) Key() InvoiceKey {
	return InvoiceKey{Invoice: li.Invoice, InvoiceDate: li.InvoiceDate}
}

// DocumentRow is the stored record of one ingested document: an uploaded PDF
// or a fetched mail message carrying PDF attachments.
type DocumentRow struct {
	ID         int
	Source     string
	Ref        string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// SaveResult is returned by a log append so the caller can report what
// happened instead of keeping ambient session state.
type SaveResult struct {
	SavedAt  time.Time
	Appended int
	LogRows  int
	LogPath  string
}
