package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tariffbench/internal/config"
	"tariffbench/internal/connectors"
	gmailconnector "tariffbench/internal/connectors/gmail"
	imapconnector "tariffbench/internal/connectors/imap"
	"tariffbench/internal/pipeline"
	"tariffbench/internal/storage"
)

// Service polls a mailbox, runs the tariff pipeline over new invoice mail and
// optionally drops a CSV per processed document.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	source := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(source)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	results, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, source)
	if err != nil {
		return err
	}
	processedItems := 0
	for _, res := range results {
		for _, w := range res.Warnings {
			fmt.Printf("warning: document %d: %s\n", res.DocumentID, w)
		}
		if len(res.Table) == 0 && res.RawExtraction != "" {
			fmt.Printf("document %d: no line items extracted, raw model output:\n%s\n", res.DocumentID, res.RawExtraction)
		}
		processedItems += len(res.Table)
	}

	if s.cfg.MailListenerAutoExport {
		if err := s.exportProcessed(source); err != nil {
			return err
		}
	}

	fmt.Printf("listener cycle done source=%s fetched=%d stored=%d skipped=%d processed=%d items=%d\n",
		source, fetchResult.Fetched, fetchResult.Stored, fetchResult.Skipped, len(results), processedItems)
	return nil
}

func (s *Service) exportProcessed(source string) error {
	docs, err := s.db.ListDocumentsByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.Source != source {
			continue
		}
		items, err := s.db.ListLineItems(doc.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			_ = s.db.UpdateDocumentStatus(doc.ID, "exported")
			continue
		}
		filename := fmt.Sprintf("%d_%s.csv", doc.ID, sanitizeRef(doc.Ref))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportCSV(items, outputPath); err != nil {
			return err
		}
		saved, err := pipeline.AppendLog(items, s.cfg.LogPath)
		if err != nil {
			return err
		}
		_ = s.db.SetMetadata("last_log_append",
			fmt.Sprintf("%s appended=%d total=%d", saved.SavedAt.UTC().Format(time.RFC3339), saved.Appended, saved.LogRows))
		_ = s.db.UpdateDocumentStatus(doc.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(source string) (connectors.MailConnector, error) {
	switch source {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", source)
	}
}

func sanitizeRef(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
