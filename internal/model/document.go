package model

import (
	"path/filepath"
	"strings"
)

// Document is one OCR'd source file
type Document struct {
	Filename string `json:"filename"`       // Source file name, e.g. "1891-03-02.pdf"
	Text     string `json:"extracted_text"` // All pages joined with newlines
}

// HasText reports whether the document carries any usable text
func (d Document) HasText() bool {
	return strings.TrimSpace(d.Text) != ""
}

// BaseName returns the filename with its extension stripped
func (d Document) BaseName() string {
	ext := filepath.Ext(d.Filename)
	if ext == d.Filename {
		// dotfile such as ".pdf" keeps its name
		return d.Filename
	}
	return strings.TrimSuffix(d.Filename, ext)
}

// StructuredRecord is a single place/activity pair pulled from one document
type StructuredRecord struct {
	PlaceLabel string `json:"place_label"`
	Activity   string `json:"activity"`
}

// ResultRow is one line of the output table
type ResultRow struct {
	Filename   string `json:"filename"`    // Document name without extension
	PlaceID    string `json:"place_id"`    // place_<n>
	PlaceLabel string `json:"place_label"` // Trimmed place label
	Activity   string `json:"activity"`
}

// ResultColumns is the header of the persisted result table
var ResultColumns = []string{"filename", "place_id", "place_label", "activity"}

// Strings returns the row in ResultColumns order
func (r ResultRow) Strings() []string {
	return []string{r.Filename, r.PlaceID, r.PlaceLabel, r.Activity}
}

// DocumentColumns is the header of the OCR output table
var DocumentColumns = []string{"filename", "extracted_text"}
