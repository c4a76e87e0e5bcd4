package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"tariffbench/internal/config"
)

// Pages with this much selectable text or less are treated as image-only and
// sent to OCR.
const minNativeTextChars = 30

type Pager interface {
	NumPages() int
	PageText(page int) (string, error)
}

type PageOCR interface {
	PageText(ctx context.Context, page int) (string, error)
}

// Transcriber turns one uploaded document into a transcript plus per-page
// warnings. The pipeline consumes it as an interface so tests can skip the
// PDF machinery.
type Transcriber interface {
	Transcript(ctx context.Context, blob []byte) (string, []string, error)
}

type Acquirer struct {
	ocr *OCREngine
}

func NewAcquirer(cfg config.Config) *Acquirer {
	return &Acquirer{ocr: NewOCREngine(cfg)}
}

// Transcript concatenates per-page text in page order, falling back to OCR
// for pages with little or no selectable text. A document that cannot be
// opened is a hard failure; everything after that degrades per page.
func (a *Acquirer) Transcript(ctx context.Context, blob []byte) (string, []string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}
	transcript, warnings := transcribe(ctx, pdfPager{reader}, boundOCR{engine: a.ocr, blob: blob})
	return transcript, warnings, nil
}

func transcribe(ctx context.Context, doc Pager, ocr PageOCR) (string, []string) {
	var b strings.Builder
	var warnings []string

	for i := 0; i < doc.NumPages(); i++ {
		text, err := doc.PageText(i)
		if err == nil && len(strings.TrimSpace(text)) > minNativeTextChars {
			b.WriteString(text)
			b.WriteString("\n")
			continue
		}

		warnings = append(warnings, fmt.Sprintf("page %d had little or no selectable text, using OCR", i+1))
		ocrText, ocrErr := ocr.PageText(ctx, i)
		if ocrErr != nil {
			warnings = append(warnings, fmt.Sprintf("page %d OCR failed, page dropped: %v", i+1, ocrErr))
			ocrText = ""
		}
		b.WriteString(ocrText)
		b.WriteString("\n")
	}

	return b.String(), warnings
}

type pdfPager struct {
	reader *pdf.Reader
}

func (p pdfPager) NumPages() int {
	return p.reader.NumPage()
}

func (p pdfPager) PageText(page int) (string, error) {
	pg := p.reader.Page(page + 1)
	if pg.V.IsNull() {
		return "", errors.New("null page")
	}
	return pg.GetPlainText(nil)
}

type boundOCR struct {
	engine *OCREngine
	blob   []byte
}

func (b boundOCR) PageText(ctx context.Context, page int) (string, error) {
	return b.engine.PageText(ctx, b.blob, page)
}
