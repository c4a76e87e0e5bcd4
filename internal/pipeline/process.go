package pipeline

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tariffbench/internal"
	"tariffbench/internal/config"
	"tariffbench/internal/inference"
	"tariffbench/internal/storage"
	"tariffbench/internal/tariff"
	"tariffbench/internal/util"
)

type ProcessingService struct {
	db          *storage.DB
	cfg         config.Config
	completer   inference.Completer
	tariff      tariff.Lookup
	transcriber Transcriber
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{
		db:          db,
		cfg:         cfg,
		completer:   inference.NewClient(cfg),
		tariff:      tariff.NewClient(cfg),
		transcriber: NewAcquirer(cfg),
	}
}

type ProcessResult struct {
	DocumentID int
	Table      []internal.LineItem
	Transcript string
	Warnings   []string
	// RawExtraction holds the model's unparsed output when no line item array
	// could be salvaged from it.
	RawExtraction string
}

// ProcessUpload registers a local PDF as an uploaded document and runs the
// full pipeline over it.
func (s *ProcessingService) ProcessUpload(ctx context.Context, path string) (ProcessResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ProcessResult{}, err
	}

	hash := sha256.Sum256(blob)
	doc, err := s.db.UpsertDocument(
		string(internal.SourceUpload), filepath.Base(path),
		"", "", time.Now().UTC().Format(time.RFC3339),
		hex.EncodeToString(hash[:]), path, "fetched",
	)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessDocument(ctx, doc)
}

// ProcessPending runs the pipeline over every fetched document, optionally
// restricted to one source. Each document's result is returned in full so
// callers can surface its warnings and diagnostics, not just counts.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, source string) ([]ProcessResult, error) {
	pending, err := s.db.ListDocumentsByStatus("fetched", limit)
	if err != nil {
		return nil, err
	}
	var results []ProcessResult
	for _, doc := range pending {
		if source != "" && doc.Source != source {
			continue
		}
		res, err := s.ProcessDocument(ctx, doc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ProcessDocument runs acquisition, extraction, classification and tariff
// reconciliation for one stored document and persists the result table.
func (s *ProcessingService) ProcessDocument(ctx context.Context, doc internal.DocumentRow) (ProcessResult, error) {
	start := time.Now()

	raw, err := os.ReadFile(doc.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	blobs := []PDFAttachment{{FileName: doc.Ref, Content: raw}}
	if doc.Source != string(internal.SourceUpload) {
		attachments, subject, text, err := ExtractPDFAttachments(raw)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("parse mail %s: %w", doc.Ref, err)
		}

		names := make([]string, 0, len(attachments))
		for _, att := range attachments {
			names = append(names, att.FileName)
		}
		detect := DetectInvoiceMail(util.FirstNonEmpty(subject, doc.Subject), text, names)
		if !detect.IsInvoice {
			_ = s.db.UpdateDocumentStatus(doc.ID, "skipped")
			_ = s.db.InsertRun(traceID(), doc.ID,
				map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
				map[string]int{"items": 0, "coded": 0})
			return ProcessResult{DocumentID: doc.ID}, nil
		}
		blobs = attachments
	}

	if err := s.db.ClearDocumentLineItems(doc.ID); err != nil {
		return ProcessResult{}, err
	}

	result := ProcessResult{DocumentID: doc.ID}
	seq := map[internal.InvoiceKey]int{}
	coded := 0

	for _, blob := range blobs {
		table, transcript, diag, warnings, err := s.processBlob(ctx, blob.Content, seq)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("process %s: %w", blob.FileName, err)
		}
		result.Transcript += transcript
		result.Warnings = append(result.Warnings, warnings...)
		if diag != "" {
			result.RawExtraction = diag
		}

		for _, item := range table {
			if item.HTSCode != "" {
				coded++
			}
			if _, err := s.db.InsertLineItem(doc.ID, item); err != nil {
				return ProcessResult{}, err
			}
		}
		result.Table = append(result.Table, table...)
	}

	if err := s.db.UpdateDocumentStatus(doc.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(traceID(), doc.ID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"items": len(result.Table), "coded": coded})

	return result, nil
}

// processBlob is the per-PDF pipeline: transcript, one extraction call, then
// per-item classification and tariff lookup. seq carries line numbering
// across attachments so a resend of the same invoice keeps one sequence.
func (s *ProcessingService) processBlob(ctx context.Context, blob []byte, seq map[internal.InvoiceKey]int) ([]internal.LineItem, string, string, []string, error) {
	transcript, warnings, err := s.transcriber.Transcript(ctx, blob)
	if err != nil {
		return nil, "", "", nil, err
	}

	raw, err := s.completer.Complete(ctx, extractionSystemPrompt, extractionPrompt(transcript))
	if err != nil {
		return nil, transcript, "", warnings, fmt.Errorf("extract line items: %w", err)
	}

	records, parseErr := parseLineItemArray(raw)
	if parseErr != nil {
		warnings = append(warnings, fmt.Sprintf("could not parse line items from model output: %v", parseErr))
		return nil, transcript, raw, warnings, nil
	}

	table := make([]internal.LineItem, 0, len(records))
	for _, record := range records {
		item := recordToLineItem(record)
		seq[item.Key()]++
		item.Line = seq[item.Key()]

		code, err := PredictHTSCode(ctx, s.completer, item)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d (%s): %v", item.Line, item.Invoice, err))
		}
		item.HTSCode = code
		item.TariffResult = s.tariff.Lookup(code)

		table = append(table, item)
	}

	return table, transcript, "", warnings, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
