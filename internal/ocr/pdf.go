package ocr

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageCount returns the number of pages in a PDF
func pageCount(path string) (n int, err error) {
	defer func() {
		// the parser panics on some damaged files
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	f, reader, err := openPDF(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	return reader.NumPage(), nil
}

// textLayer returns the embedded text of up to maxPages pages (0 means all),
// one page per line block in page order
func textLayer(path string, maxPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf text %s: %v", path, r)
		}
	}()

	f, reader, err := openPDF(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	total := reader.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimRight(t, "\n"))
	}
	return strings.Join(pages, "\n"), nil
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat pdf: %w", err)
	}
	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("parse pdf: %w", err)
	}
	return f, reader, nil
}
