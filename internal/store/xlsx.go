package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/newsplaces/internal/fsutil"
	"github.com/ppiankov/newsplaces/internal/model"
)

// SheetName is the worksheet holding the result table
const SheetName = "Places"

// XLSXStore mirrors the result table into a workbook
type XLSXStore struct {
	path string
}

// NewXLSXStore creates a store writing to path
func NewXLSXStore(path string) *XLSXStore {
	return &XLSXStore{path: path}
}

// Path returns the workbook path
func (s *XLSXStore) Path() string {
	return s.path
}

// Save rebuilds the workbook and replaces the file atomically
func (s *XLSXStore) Save(ctx context.Context, rows []model.ResultRow) error {
	if err := ctx.Err(); err != nil {
		return &model.PersistenceError{Path: s.path, Cause: err}
	}

	buf, err := buildWorkbook(rows)
	if err != nil {
		return &model.PersistenceError{Path: s.path, Cause: err}
	}

	err = fsutil.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return &model.PersistenceError{Path: s.path, Cause: err}
	}
	return nil
}

func buildWorkbook(rows []model.ResultRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// Rename the default sheet rather than adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range model.ResultColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for r, row := range rows {
		for c, v := range row.Strings() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			// SetCellStr keeps ids and labels as text even when they look numeric
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24) // filename
	_ = f.SetColWidth(SheetName, "B", "B", 12) // place_id
	_ = f.SetColWidth(SheetName, "C", "C", 40) // place_label
	_ = f.SetColWidth(SheetName, "D", "D", 60) // activity

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf, nil
}
