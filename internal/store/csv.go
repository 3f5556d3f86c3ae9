package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/newsplaces/internal/fsutil"
	"github.com/ppiankov/newsplaces/internal/model"
)

const utf8BOM = "\ufeff"

// CSVStore writes the result table as UTF-8 CSV
type CSVStore struct {
	path string
}

// NewCSVStore creates a store writing to path
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the output file path
func (s *CSVStore) Path() string {
	return s.path
}

// Save replaces the file with a header plus rows. Readers see either the
// previous table or the new one, never a partial write.
func (s *CSVStore) Save(ctx context.Context, rows []model.ResultRow) error {
	if err := ctx.Err(); err != nil {
		return &model.PersistenceError{Path: s.path, Cause: err}
	}

	err := fsutil.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(model.ResultColumns); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write(r.Strings()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return &model.PersistenceError{Path: s.path, Cause: err}
	}
	return nil
}

// LoadDocuments reads an OCR table with at least filename and
// extracted_text columns. Extra columns are ignored and missing cells load
// as empty text. Rows keep file order.
func LoadDocuments(path string) ([]model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadDocuments(f)
}

// ReadDocuments is LoadDocuments over a reader
func ReadDocuments(r io.Reader) ([]model.Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("input has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	fileCol, ok := cols[model.DocumentColumns[0]]
	if !ok {
		return nil, fmt.Errorf("input is missing column %q", model.DocumentColumns[0])
	}
	textCol, ok := cols[model.DocumentColumns[1]]
	if !ok {
		return nil, fmt.Errorf("input is missing column %q", model.DocumentColumns[1])
	}

	var docs []model.Document
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		docs = append(docs, model.Document{
			Filename: cell(rec, fileCol),
			Text:     cell(rec, textCol),
		})
	}
	return docs, nil
}

// WriteDocuments writes the OCR table atomically
func WriteDocuments(path string, docs []model.Document) error {
	return fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(model.DocumentColumns); err != nil {
			return err
		}
		for _, d := range docs {
			if err := cw.Write([]string{d.Filename, d.Text}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
