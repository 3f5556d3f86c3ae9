// Package extract turns one document's text into place/activity records
// through a completion provider.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/newsplaces/internal/llm"
	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/model"
	"github.com/ppiankov/newsplaces/internal/sanitize"
)

// RecordExtractor asks the provider for records, one call per document
type RecordExtractor struct {
	provider  llm.Provider
	sanitizer sanitize.Sanitizer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a RecordExtractor
type Option func(*RecordExtractor)

// WithRepair enables the one-shot JSON repair of unparseable responses
func WithRepair(enabled bool) Option {
	return func(e *RecordExtractor) { e.sanitizer.Repair = enabled }
}

// WithMetrics records outcomes and provider latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *RecordExtractor) { e.metrics = m }
}

// WithLogger sets the logger; nil keeps slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *RecordExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewRecordExtractor creates an extractor over provider
func NewRecordExtractor(provider llm.Provider, opts ...Option) *RecordExtractor {
	e := &RecordExtractor{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the valid records of doc. It never fails: a document
// without text, an unreachable provider or an unparseable response all
// yield an empty slice, and the cause is logged.
func (e *RecordExtractor) Extract(ctx context.Context, doc model.Document) []model.StructuredRecord {
	records, err := e.extract(ctx, doc)
	switch {
	case err == nil && len(records) > 0:
		e.metrics.IncDocument(metrics.OutcomeExtracted)
	case err == nil:
		e.metrics.IncDocument(metrics.OutcomeEmpty)
	case errors.Is(err, model.ErrInvalidDocument):
		e.metrics.IncDocument(metrics.OutcomeSkipped)
		e.logger.Debug("extract.skipped", "filename", doc.Filename, "reason", "no text")
	case errors.Is(err, model.ErrMalformedExtraction):
		e.metrics.IncDocument(metrics.OutcomeMalformed)
		var me *model.MalformedExtractionError
		raw := ""
		if errors.As(err, &me) {
			raw = me.Raw
		}
		e.logger.Warn("extract.malformed", "filename", doc.Filename, "error", err, "raw", raw)
	default:
		e.metrics.IncDocument(metrics.OutcomeFailed)
		e.logger.Warn("extract.provider_failed", "filename", doc.Filename, "error", err)
	}
	return records
}

// extract is Extract with the failure cause kept
func (e *RecordExtractor) extract(ctx context.Context, doc model.Document) ([]model.StructuredRecord, error) {
	if !doc.HasText() {
		return nil, fmt.Errorf("%s: %w", doc.Filename, model.ErrInvalidDocument)
	}

	req := llm.CompletionRequest{Prompt: llm.BuildExtractionPrompt(doc.Text)}
	start := time.Now()
	resp, err := e.provider.Complete(ctx, req)
	e.metrics.ObserveProviderLatency(e.provider.Name(), time.Since(start))
	if err != nil {
		return nil, &model.CollaboratorError{Provider: e.provider.Name(), Cause: err}
	}

	items, err := e.sanitizer.Sanitize(resp.Text)
	if err != nil {
		if f, ok := e.provider.(forgetter); ok {
			f.Forget(req)
		}
		return nil, err
	}

	records := make([]model.StructuredRecord, 0, len(items))
	for i, item := range items {
		rec, reason := toRecord(item)
		if reason != "" {
			e.logger.Debug("extract.record_dropped", "filename", doc.Filename, "index", i, "reason", reason)
			continue
		}
		records = append(records, rec)
	}
	e.metrics.AddRecords(len(records), len(items)-len(records))

	e.logger.Debug("extract.done",
		"filename", doc.Filename,
		"records", len(records),
		"dropped", len(items)-len(records),
		"cached", resp.Cached,
	)
	return records, nil
}

// forgetter is implemented by providers that replay earlier responses
type forgetter interface {
	Forget(req llm.CompletionRequest)
}

// toRecord validates one array element. A non-empty reason means the
// element is dropped.
func toRecord(item any) (model.StructuredRecord, string) {
	if err := recordSchema.Validate(item); err != nil {
		return model.StructuredRecord{}, err.Error()
	}
	obj := item.(map[string]any)
	rec := model.StructuredRecord{
		PlaceLabel: strings.TrimSpace(obj["place_label"].(string)),
		Activity:   strings.TrimSpace(obj["activity"].(string)),
	}
	switch {
	case rec.PlaceLabel == "":
		return model.StructuredRecord{}, "blank place_label"
	case rec.Activity == "":
		return model.StructuredRecord{}, "blank activity"
	}
	return rec, ""
}
