package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"tariffbench/internal/config"
)

// Runner lets tests stub the tesseract binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// OCREngine rasterizes a PDF page and runs tesseract over the raster.
type OCREngine struct {
	cfg    config.Config
	runner Runner
}

func NewOCREngine(cfg config.Config) *OCREngine {
	return &OCREngine{cfg: cfg, runner: execRunner{}}
}

// PageText renders page (0-based) of the document at the configured DPI and
// returns the recognized text. Any failure here is the caller's cue to degrade
// the page to empty content.
func (e *OCREngine) PageText(ctx context.Context, blob []byte, page int) (string, error) {
	doc, err := fitz.NewFromMemory(blob)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page+1, err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page, float64(e.cfg.OCRDPI))
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page+1, err)
	}

	tmpDir, err := os.MkdirTemp("", "tb-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	imgPath := filepath.Join(tmpDir, "page.png")
	f, err := os.Create(imgPath)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode page %d: %w", page+1, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.TesseractBin, imgPath, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract page %d: %v: %s", page+1, err, bytes.TrimSpace(errb))
	}
	return string(out), nil
}
