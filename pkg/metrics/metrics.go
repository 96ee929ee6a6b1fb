// Package metrics exposes the pipeline's Prometheus collectors. All
// collectors are registered on the default registry at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchRequests counts upstream source calls by outcome.
	FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georisk_fetch_requests_total",
		Help: "Number of upstream source requests by outcome.",
	}, []string{"source", "status"})

	// EventsIngested counts stored raw events by source.
	EventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georisk_events_ingested_total",
		Help: "Number of raw events stored.",
	}, []string{"source"})

	// EventsDropped counts records rejected during normalization.
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georisk_events_dropped_total",
		Help: "Number of event records dropped.",
	}, []string{"reason"})

	// CellsFailed counts per-country stage failures within a batch.
	CellsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georisk_cells_failed_total",
		Help: "Number of per-country cells that failed a pipeline stage.",
	}, []string{"stage"})

	// BatchDuration observes wall-clock batch runtimes.
	BatchDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "georisk_batch_duration_seconds",
		Help: "Duration of pipeline batch runs.",
	})

	// LastBatch records the completion time of the most recent batch.
	LastBatch = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "georisk_last_batch_timestamp_seconds",
		Help: "Unix time of the last completed batch.",
	})

	// CountryRisk publishes the latest overall risk score per country.
	CountryRisk = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "georisk_country_risk_score",
		Help: "Latest overall risk score by country.",
	}, []string{"country"})
)

func init() {
	prometheus.MustRegister(
		FetchRequests,
		EventsIngested,
		EventsDropped,
		CellsFailed,
		BatchDuration,
		LastBatch,
		CountryRisk,
	)
}
