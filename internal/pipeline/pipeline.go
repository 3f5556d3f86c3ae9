// Package pipeline drives extraction over a corpus of documents and keeps
// the result table on disk current after every document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/model"
	"github.com/ppiankov/newsplaces/internal/registry"
	"github.com/ppiankov/newsplaces/internal/store"
)

// Extractor returns the records of one document, never failing
type Extractor interface {
	Extract(ctx context.Context, doc model.Document) []model.StructuredRecord
}

// RegistrySink receives place entries as they are assigned
type RegistrySink interface {
	Append(ctx context.Context, entries []registry.Entry) error
	Path() string
}

// Driver runs documents through the extractor in order, one at a time.
// It owns the registry and the result table.
type Driver struct {
	extractor Extractor
	registry  *registry.Registry
	store     store.Store
	sink      RegistrySink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	progress  io.Writer
}

// Option configures a Driver
type Option func(*Driver)

// WithRegistrySink saves newly assigned places after each persisted document
func WithRegistrySink(s RegistrySink) Option {
	return func(d *Driver) { d.sink = s }
}

// WithMetrics counts persists and registered places
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithLogger sets the logger; nil keeps slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProgress prints one line per document to w
func WithProgress(w io.Writer) Option {
	return func(d *Driver) { d.progress = w }
}

// NewDriver creates a driver. A nil registry starts empty.
func NewDriver(extractor Extractor, reg *registry.Registry, st store.Store, opts ...Option) *Driver {
	if reg == nil {
		reg = registry.New()
	}
	d := &Driver{
		extractor: extractor,
		registry:  reg,
		store:     st,
		logger:    slog.Default(),
		progress:  io.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the driver resolves labels against
func (d *Driver) Registry() *registry.Registry {
	return d.registry
}

// Run processes docs in order and returns the result table.
//
// The empty table is written before the first document, then the full
// table after every document that produced rows. A persistence failure
// stops the run and leaves the last good file in place; the returned rows
// are the ones that file holds. Cancellation is honoured between
// documents, and a document whose extraction was interrupted adds nothing.
func (d *Driver) Run(ctx context.Context, docs []model.Document) ([]model.ResultRow, error) {
	start := time.Now()
	rows := []model.ResultRow{}

	if err := d.persist(ctx, rows); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			d.logger.Info("pipeline.cancelled", "processed", i, "total", len(docs))
			return rows, fmt.Errorf("run cancelled after %d of %d documents: %w", i, len(docs), err)
		}

		_, _ = fmt.Fprintf(d.progress, "Processing %s...\n", doc.Filename)
		records := d.extractor.Extract(ctx, doc)
		if len(records) == 0 {
			d.logger.Debug("pipeline.document.empty", "filename", doc.Filename)
			continue
		}
		if ctx.Err() != nil {
			// interrupted after the call returned; drop the partial document
			continue
		}

		before := d.registry.Len()
		next := make([]model.ResultRow, len(rows), len(rows)+len(records))
		copy(next, rows)
		name := doc.BaseName()
		for _, rec := range records {
			next = append(next, model.ResultRow{
				Filename:   name,
				PlaceID:    d.registry.Resolve(rec.PlaceLabel),
				PlaceLabel: registry.Key(rec.PlaceLabel),
				Activity:   rec.Activity,
			})
		}

		// New ids reach the durable registry before the table that uses
		// them, so the table never holds an id a later run could reissue.
		added := d.registry.Since(before)
		if err := d.saveEntries(ctx, added); err != nil {
			return rows, err
		}
		if err := d.persist(ctx, next); err != nil {
			return rows, err
		}
		rows = next
		d.metrics.AddPlaces(len(added))

		_, _ = fmt.Fprintf(d.progress, "Results saved to %s\n", d.store.Path())
		d.logger.Info("pipeline.document.saved",
			"filename", doc.Filename,
			"records", len(records),
			"new_places", len(added),
			"rows", len(rows),
		)
	}

	d.logger.Info("pipeline.done",
		"documents", len(docs),
		"rows", len(rows),
		"places", d.registry.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rows, nil
}

// persist writes the whole table. The write itself is not cancelled so a
// finished document is never half-saved.
func (d *Driver) persist(ctx context.Context, rows []model.ResultRow) error {
	err := d.store.Save(context.WithoutCancel(ctx), rows)
	d.metrics.IncPersist(err == nil)
	if err != nil {
		d.logger.Error("pipeline.persist.failed", "path", d.store.Path(), "rows", len(rows), "error", err)
		return asPersistenceError(d.store.Path(), err)
	}
	d.logger.Debug("pipeline.persist.ok", "path", d.store.Path(), "rows", len(rows))
	return nil
}

func (d *Driver) saveEntries(ctx context.Context, entries []registry.Entry) error {
	if d.sink == nil || len(entries) == 0 {
		return nil
	}
	if err := d.sink.Append(context.WithoutCancel(ctx), entries); err != nil {
		d.logger.Error("pipeline.registry.save_failed", "path", d.sink.Path(), "error", err)
		return asPersistenceError(d.sink.Path(), err)
	}
	return nil
}

func asPersistenceError(path string, err error) error {
	var pe *model.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &model.PersistenceError{Path: path, Cause: err}
}
