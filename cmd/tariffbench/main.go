package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tariffbench/internal"
	"tariffbench/internal/config"
	"tariffbench/internal/connectors"
	gmailconnector "tariffbench/internal/connectors/gmail"
	imapconnector "tariffbench/internal/connectors/imap"
	"tariffbench/internal/listener"
	"tariffbench/internal/pipeline"
	"tariffbench/internal/storage"
)

const transcriptPreviewChars = 2000

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to a PDF invoice")
		csvOut := fs.String("csv", "", "optional CSV output path")
		appendLog := fs.Bool("append-log", false, "append results to the XLSX log")
		showText := fs.String("show-text", "", "print the acquired transcript: preview|full")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))

		processor := pipeline.NewProcessingService(db, cfg)
		res, err := processor.ProcessUpload(context.Background(), *input)
		must(err)

		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if *showText != "" {
			fmt.Println(preview(res.Transcript, *showText))
		}
		if len(res.Table) == 0 && res.RawExtraction != "" {
			fmt.Println("no line items extracted, raw model output:")
			fmt.Println(preview(res.RawExtraction, "preview"))
		}
		printTable(res)

		if *csvOut != "" {
			must(pipeline.ExportCSV(res.Table, *csvOut))
			fmt.Printf("exported %d rows to %s\n", len(res.Table), *csvOut)
		}
		if *appendLog {
			saved, err := pipeline.AppendLog(res.Table, cfg.LogPath)
			must(err)
			recordLogAppend(db, saved)
			fmt.Printf("log append done at=%s appended=%d total=%d path=%s\n",
				saved.SavedAt.Format("2006-01-02 15:04:05"), saved.Appended, saved.LogRows, saved.LogPath)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		ref := fs.String("ref", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))

		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*ref) != "" {
			doc, err := db.MustDocumentBySourceRef(*provider, *ref)
			must(err)
			res, err := processor.ProcessDocument(context.Background(), doc)
			must(err)
			printNotices(res)
			fmt.Printf("processed document id=%d items=%d\n", res.DocumentID, len(res.Table))
			return
		}
		results, err := processor.ProcessPending(context.Background(), *batch, *provider)
		must(err)
		processedItems := 0
		for _, res := range results {
			printNotices(res)
			processedItems += len(res.Table)
		}
		fmt.Printf("processed pending documents=%d items=%d\n", len(results), processedItems)
	case "mail:listen":
		must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "export:csv":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		documentID := fs.Int("documentId", 0, "internal document id")
		out := fs.String("out", "", "output csv path")
		_ = fs.Parse(os.Args[2:])
		if *documentID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--documentId and --out are required"))
		}
		items, err := db.ListLineItems(*documentID)
		must(err)
		if len(items) == 0 {
			must(fmt.Errorf("no line items for documentId=%d", *documentID))
		}
		must(pipeline.ExportCSV(items, *out))
		fmt.Printf("exported %d rows to %s\n", len(items), *out)
	case "log:append":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		documentID := fs.Int("documentId", 0, "internal document id")
		_ = fs.Parse(os.Args[2:])
		if *documentID == 0 {
			must(fmt.Errorf("--documentId is required"))
		}
		items, err := db.ListLineItems(*documentID)
		must(err)
		saved, err := pipeline.AppendLog(items, cfg.LogPath)
		must(err)
		recordLogAppend(db, saved)
		fmt.Printf("log append done at=%s appended=%d total=%d path=%s\n",
			saved.SavedAt.Format("2006-01-02 15:04:05"), saved.Appended, saved.LogRows, saved.LogPath)
	default:
		usage()
		os.Exit(1)
	}
}

func recordLogAppend(db *storage.DB, saved internal.SaveResult) {
	_ = db.SetMetadata("last_log_append",
		fmt.Sprintf("%s appended=%d total=%d", saved.SavedAt.UTC().Format(time.RFC3339), saved.Appended, saved.LogRows))
}

func printNotices(res pipeline.ProcessResult) {
	for _, w := range res.Warnings {
		fmt.Printf("warning: document %d: %s\n", res.DocumentID, w)
	}
	if len(res.Table) == 0 && res.RawExtraction != "" {
		fmt.Printf("document %d: no line items extracted, raw model output:\n%s\n",
			res.DocumentID, preview(res.RawExtraction, "preview"))
	}
}

func printTable(res pipeline.ProcessResult) {
	fmt.Println(strings.Join(pipeline.ResultColumns, " | "))
	for _, item := range res.Table {
		fmt.Printf("%s | %s | %d | %s | %s | %s | %s | %s | %s | %s | %s\n",
			item.Invoice, item.InvoiceDate, item.Line, item.Description, item.PartNumber,
			item.Brand, item.Qty, item.Price, item.ExtPrice, item.HTSCode, item.TariffResult)
	}
}

func preview(text, mode string) string {
	if mode == "full" || len(text) <= transcriptPreviewChars {
		return text
	}
	return text[:transcriptPreviewChars] + "\n... (truncated)"
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: tariffbench <command>")
	fmt.Println("commands:")
	fmt.Println("  process --input=invoice.pdf [--csv=out.csv] [--append-log] [--show-text=preview|full]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--ref=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:csv --documentId=1 --out=./out/summary.csv")
	fmt.Println("  log:append --documentId=1")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
