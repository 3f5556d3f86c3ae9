// Package metrics counts what a run did. Collectors live on a private
// registry and are written out as a Prometheus text file at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Document outcomes
const (
	OutcomeExtracted = "extracted" // produced at least one row
	OutcomeEmpty     = "empty"     // valid response without records
	OutcomeSkipped   = "skipped"   // no text
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "provider_failed"
)

// Metrics provides observability for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Documents by outcome
	Documents *prometheus.CounterVec

	// Records kept or dropped by validation
	Records *prometheus.CounterVec

	// Distinct places registered
	Places prometheus.Counter

	// Result table writes by status
	Persists *prometheus.CounterVec

	// Completion latency by provider
	ProviderLatency *prometheus.HistogramVec

	// OCR'd files by status
	OCRFiles *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsplaces_documents_total",
			Help: "Documents processed by extraction outcome",
		}, []string{"outcome"}),

		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsplaces_records_total",
			Help: "Extracted records by validation result",
		}, []string{"result"}), // result: "kept", "dropped"

		Places: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsplaces_places_registered_total",
			Help: "Distinct place labels assigned an id",
		}),

		Persists: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsplaces_persist_writes_total",
			Help: "Result table writes by status",
		}, []string{"status"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsplaces_provider_duration_seconds",
			Help:    "Duration of completion calls by provider",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider"}),

		OCRFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsplaces_ocr_files_total",
			Help: "PDF files converted by status",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry (for tests and custom exporters)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncDocument records one document outcome
func (m *Metrics) IncDocument(outcome string) {
	if m != nil {
		m.Documents.WithLabelValues(outcome).Inc()
	}
}

// AddRecords records validated records
func (m *Metrics) AddRecords(kept, dropped int) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues("kept").Add(float64(kept))
	m.Records.WithLabelValues("dropped").Add(float64(dropped))
}

// AddPlaces records newly registered places
func (m *Metrics) AddPlaces(n int) {
	if m != nil && n > 0 {
		m.Places.Add(float64(n))
	}
}

// IncPersist records a table write
func (m *Metrics) IncPersist(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.Persists.WithLabelValues(status).Inc()
}

// ObserveProviderLatency records one completion call
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncOCRFile records one converted or failed PDF
func (m *Metrics) IncOCRFile(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.OCRFiles.WithLabelValues(status).Inc()
}

// WriteTextfile writes all metrics in the Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
