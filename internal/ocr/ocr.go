// Package ocr converts scanned PDF pages to text with pdftoppm and tesseract.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/newsplaces/internal/model"
)

// Extractor turns one PDF into text
type Extractor struct {
	cfg    model.OCRConfig
	runner Runner
	logger *slog.Logger
}

// NewExtractor creates an extractor running the configured binaries on the host
func NewExtractor(cfg model.OCRConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return NewExtractorWithRunner(cfg, ExecRunner{Logger: logger}, logger)
}

// NewExtractorWithRunner creates an extractor over a custom Runner
func NewExtractorWithRunner(cfg model.OCRConfig, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// ExtractFile returns the text of every page of the PDF at path, joined
// with newlines in page order. With the text layer enabled, embedded text
// is used when present and OCR only runs for image-only files.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if e.cfg.UseTextLayer {
		text, err := textLayer(path, e.cfg.MaxPages)
		switch {
		case err != nil:
			e.logger.Debug("ocr.text_layer.unreadable", "path", path, "error", err)
		case strings.TrimSpace(text) != "":
			e.logger.Debug("ocr.text_layer.used", "path", path, "chars", len(text))
			return text, nil
		}
	}
	return e.rasterize(ctx, path)
}

func (e *Extractor) rasterize(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "newsplaces-pp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()

	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		if n, err := pageCount(path); err == nil && n > e.cfg.MaxPages {
			args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	// page-1.png, page-2.png, ... zero padded to the page count width
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no images for %s", path)
	}

	pages := make([]string, 0, len(matches))
	for _, img := range matches {
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.Lang)
		if err != nil {
			return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(img), err, strings.TrimSpace(string(errb)))
		}
		pages = append(pages, string(out))
	}
	return strings.Join(pages, "\n"), nil
}
