// Package metrics exposes reconciliation outcomes as Prometheus collectors
package metrics

import (
	"net/http"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the scraper
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	PostingsTotal     *prometheus.CounterVec
	RemovedPostings   *prometheus.GaugeVec
	SuccessionTotal   *prometheus.CounterVec
	BackendCallsTotal *prometheus.CounterVec
	LastRunTimestamp  *prometheus.GaugeVec
}

var _ interfaces.RunRecorder = (*Metrics)(nil)

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nato_scraper_runs_total",
				Help: "Reconciliation runs by source and outcome.",
			},
			[]string{"source", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nato_scraper_run_duration_seconds",
				Help:    "Reconciliation run duration in seconds.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
			},
			[]string{"source"},
		),
		PostingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nato_scraper_postings_total",
				Help: "Postings processed by source and classification (new, amended, unchanged, failed).",
			},
			[]string{"source", "class"},
		),
		RemovedPostings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nato_scraper_unlisted_postings",
				Help: "Active stored postings not seen on the listing in the last run.",
			},
			[]string{"source"},
		),
		SuccessionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nato_scraper_succession_total",
				Help: "Succession checks by outcome and notices superseded.",
			},
			[]string{"result"},
		),
		BackendCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nato_scraper_backend_calls_total",
				Help: "Extraction backend calls by provider and status.",
			},
			[]string{"provider", "status"},
		),
		LastRunTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nato_scraper_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run per source.",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PostingsTotal,
		m.RemovedPostings,
		m.SuccessionTotal,
		m.BackendCallsTotal,
		m.LastRunTimestamp,
	)

	return m
}

// ObserveRun records a finished reconciliation run
func (m *Metrics) ObserveRun(result *models.RunResult) {
	m.RunsTotal.WithLabelValues(result.Source, status(result.Success)).Inc()
	m.RunDuration.WithLabelValues(result.Source).Observe(result.DurationSeconds)

	m.PostingsTotal.WithLabelValues(result.Source, "new").Add(float64(len(result.New)))
	m.PostingsTotal.WithLabelValues(result.Source, "amended").Add(float64(len(result.Amendments)))
	m.PostingsTotal.WithLabelValues(result.Source, "unchanged").Add(float64(result.UnchangedCount))
	m.PostingsTotal.WithLabelValues(result.Source, "failed").Add(float64(result.FailedCount))

	m.RemovedPostings.WithLabelValues(result.Source).Set(float64(result.RemovedCount))
	m.LastRunTimestamp.WithLabelValues(result.Source).Set(float64(result.EndTime.Unix()))
}

// ObserveSuccession records a succession check
func (m *Metrics) ObserveSuccession(result *models.SuccessionResult) {
	m.SuccessionTotal.WithLabelValues(status(result.Success)).Inc()
	m.SuccessionTotal.WithLabelValues("superseded").Add(float64(result.SucceededCount))
}

// ObserveBackendCall records one extraction backend call
func (m *Metrics) ObserveBackendCall(provider string, ok bool) {
	m.BackendCallsTotal.WithLabelValues(provider, status(ok)).Inc()
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// NoopRecorder discards observations
type NoopRecorder struct{}

var _ interfaces.RunRecorder = NoopRecorder{}

func (NoopRecorder) ObserveRun(*models.RunResult)               {}
func (NoopRecorder) ObserveSuccession(*models.SuccessionResult) {}
func (NoopRecorder) ObserveBackendCall(string, bool)            {}
