package extract

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/newsplaces/internal/llm"
	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/model"
)

// fakeProvider returns a canned completion and records the prompts it saw
type fakeProvider struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text}, nil
}

func (f *fakeProvider) IsAvailable(context.Context) bool { return true }

func doc(text string) model.Document {
	return model.Document{Filename: "a.pdf", Text: text}
}

func TestExtract_ValidRecords(t *testing.T) {
	p := &fakeProvider{text: `[{"place_label":" 12 Main St ","activity":"fire"},{"place_label":"Town Hall","activity":"meeting"}]`}
	e := NewRecordExtractor(p)

	records := e.Extract(context.Background(), doc("A fire broke out at 12 Main St."))

	require.Len(t, records, 2)
	assert.Equal(t, model.StructuredRecord{PlaceLabel: "12 Main St", Activity: "fire"}, records[0])
	assert.Equal(t, model.StructuredRecord{PlaceLabel: "Town Hall", Activity: "meeting"}, records[1])

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "A fire broke out at 12 Main St.")
}

func TestExtract_DropsInvalidElements(t *testing.T) {
	p := &fakeProvider{text: `Sure! [
		{"place_label":"Mill","activity":"   "},
		{"place_label":"","activity":"strike"},
		{"place_label":"Dock"},
		{"place_label":7,"activity":"x"},
		"just a string",
		["nested"],
		{"place_label":"Quay","activity":"unloading","confidence":0.9}
	] Hope this helps.`}
	e := NewRecordExtractor(p)

	records := e.Extract(context.Background(), doc("text"))

	require.Len(t, records, 1)
	assert.Equal(t, "Quay", records[0].PlaceLabel)
	assert.Equal(t, "unloading", records[0].Activity)
}

func TestExtract_EmptyActivityDropped(t *testing.T) {
	p := &fakeProvider{text: `[{"place_label":"X","activity":""}]`}
	e := NewRecordExtractor(p)

	assert.Empty(t, e.Extract(context.Background(), doc("text")))
}

func TestExtract_AbsentTextSkipsProvider(t *testing.T) {
	p := &fakeProvider{text: `[]`}
	e := NewRecordExtractor(p)

	for _, text := range []string{"", "   ", "\n\t"} {
		records, err := e.extract(context.Background(), doc(text))
		assert.Empty(t, records)
		assert.ErrorIs(t, err, model.ErrInvalidDocument)
	}
	assert.Empty(t, p.prompts)
}

func TestExtract_ProviderFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	e := NewRecordExtractor(p)

	records, err := e.extract(context.Background(), doc("text"))
	assert.Empty(t, records)
	require.ErrorIs(t, err, model.ErrCollaboratorUnavailable)

	var ce *model.CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fake", ce.Provider)

	// public form degrades to empty
	assert.Empty(t, e.Extract(context.Background(), doc("text")))
}

func TestExtract_MalformedIsLoggedWithRaw(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := &fakeProvider{text: "I could not find any places."}
	e := NewRecordExtractor(p, WithLogger(logger))

	records := e.Extract(context.Background(), doc("text"))
	assert.Empty(t, records)

	out := buf.String()
	assert.Contains(t, out, "extract.malformed")
	assert.Contains(t, out, "filename=a.pdf")
	assert.Contains(t, out, "I could not find any places.")
}

func TestExtract_EmptyArrayIsNotAnError(t *testing.T) {
	p := &fakeProvider{text: "No places here: []"}
	e := NewRecordExtractor(p)

	records, err := e.extract(context.Background(), doc("text"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtract_RepairOption(t *testing.T) {
	text := `[{"place_label":"Pier","activity":"regatta",}]`

	strict := NewRecordExtractor(&fakeProvider{text: text})
	_, err := strict.extract(context.Background(), doc("text"))
	require.ErrorIs(t, err, model.ErrMalformedExtraction)

	lenient := NewRecordExtractor(&fakeProvider{text: text}, WithRepair(true))
	records, err := lenient.extract(context.Background(), doc("text"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pier", records[0].PlaceLabel)
}

func TestExtract_Metrics(t *testing.T) {
	m := metrics.New()

	ok := NewRecordExtractor(&fakeProvider{text: `[{"place_label":"A","activity":"B"},{"place_label":"A"}]`}, WithMetrics(m))
	ok.Extract(context.Background(), doc("text"))
	ok.Extract(context.Background(), doc(""))

	bad := NewRecordExtractor(&fakeProvider{text: "nope"}, WithMetrics(m))
	bad.Extract(context.Background(), doc("text"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues(metrics.OutcomeExtracted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues(metrics.OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues(metrics.OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("dropped")))
}

func TestToRecord_TrimsValues(t *testing.T) {
	rec, reason := toRecord(map[string]any{"place_label": "\tHigh St\n", "activity": " market "})
	require.Empty(t, reason)
	assert.Equal(t, "High St", rec.PlaceLabel)
	assert.Equal(t, "market", rec.Activity)

	_, reason = toRecord(nil)
	assert.False(t, strings.TrimSpace(reason) == "")
}

func TestExtract_UnicodeBlankFieldsDropped(t *testing.T) {
	p := &fakeProvider{text: `[{"place_label":" ","activity":"fire"},{"place_label":"Dock Road","activity":"\u000b"},{"place_label":" Quay ","activity":"unloading"}]`}
	e := NewRecordExtractor(p)

	records := e.Extract(context.Background(), doc("text"))

	require.Len(t, records, 1)
	assert.Equal(t, model.StructuredRecord{PlaceLabel: "Quay", Activity: "unloading"}, records[0])
}

func TestToRecord_BlankAfterTrim(t *testing.T) {
	for _, tc := range []struct {
		name string
		item map[string]any
	}{
		{"nbsp label", map[string]any{"place_label": " ", "activity": "fire"}},
		{"vertical tab activity", map[string]any{"place_label": "Dock Road", "activity": "\v"}},
		{"ascii blank label", map[string]any{"place_label": "  ", "activity": "fire"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := toRecord(tc.item)
			assert.NotEmpty(t, reason)
		})
	}
}

// forgettingProvider is a fakeProvider that also drops stored responses
type forgettingProvider struct {
	fakeProvider
	forgotten []llm.CompletionRequest
}

func (f *forgettingProvider) Forget(req llm.CompletionRequest) {
	f.forgotten = append(f.forgotten, req)
}

func TestExtract_MalformedResponseIsForgotten(t *testing.T) {
	p := &forgettingProvider{fakeProvider: fakeProvider{text: `[{"place_label":"Dock`}}
	e := NewRecordExtractor(p)

	assert.Empty(t, e.Extract(context.Background(), doc("Fire at Dock Road")))
	require.Len(t, p.forgotten, 1)
	assert.Contains(t, p.forgotten[0].Prompt, "Fire at Dock Road")

	p.text = `[]`
	assert.Empty(t, e.Extract(context.Background(), doc("Fire at Dock Road")))
	assert.Len(t, p.forgotten, 1, "a parseable response is kept")
}
