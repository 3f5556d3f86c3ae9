package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/model"
	"github.com/ppiankov/newsplaces/internal/worker"
)

// FileExtractor converts one file to text
type FileExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Stage converts every PDF in a folder
type Stage struct {
	extractor FileExtractor
	workers   int
	metrics   *metrics.Metrics
	logger    *slog.Logger
	progress  io.Writer
}

// NewStage creates a stage running up to workers files at once
func NewStage(extractor FileExtractor, workers int, m *metrics.Metrics, logger *slog.Logger, progress io.Writer) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Stage{
		extractor: extractor,
		workers:   workers,
		metrics:   m,
		logger:    logger,
		progress:  progress,
	}
}

// fileJob converts one PDF on the worker pool
type fileJob struct {
	stage *Stage
	path  string
}

type fileResult struct {
	doc model.Document
	err error
}

func (r *fileResult) GetError() error { return r.err }

func (j *fileJob) Execute(ctx context.Context) worker.Result {
	name := filepath.Base(j.path)
	_, _ = fmt.Fprintf(j.stage.progress, "Processing: %s\n", j.path)

	text, err := j.stage.extractor.ExtractFile(ctx, j.path)
	if err != nil {
		return &fileResult{doc: model.Document{Filename: name}, err: err}
	}
	return &fileResult{doc: model.Document{Filename: name, Text: text}}
}

// Run converts the PDFs in folder (matched case-insensitively, sorted by
// name) and returns one document per converted file in that order. Files
// that fail are logged and left out.
func (s *Stage) Run(ctx context.Context, folder string) ([]model.Document, error) {
	paths, err := ListPDFs(folder)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ocr.start", "folder", folder, "files", len(paths), "workers", s.workers)

	jobs := make([]worker.Job, len(paths))
	for i, p := range paths {
		jobs[i] = &fileJob{stage: s, path: p}
	}

	results := worker.RunOrdered(ctx, s.workers, jobs)

	docs := make([]model.Document, 0, len(paths))
	for i, r := range results {
		if r == nil {
			// never ran: cancelled
			continue
		}
		fr := r.(*fileResult)
		if fr.err != nil {
			s.metrics.IncOCRFile(false)
			_, _ = fmt.Fprintf(s.progress, "Error converting %s: %v\n", filepath.Base(paths[i]), fr.err)
			s.logger.Warn("ocr.file.failed", "path", paths[i], "error", fr.err)
			continue
		}
		s.metrics.IncOCRFile(true)
		docs = append(docs, fr.doc)
	}

	if err := ctx.Err(); err != nil {
		return docs, fmt.Errorf("ocr cancelled: %w", err)
	}
	s.logger.Info("ocr.done", "converted", len(docs), "failed", len(paths)-len(docs))
	return docs, nil
}

// ListPDFs returns the .pdf files directly inside folder, sorted by name
func ListPDFs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(folder, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
