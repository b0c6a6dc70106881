package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScrapesTotal counts scrape attempts by result.
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "scrapes_total",
			Help:      "Total number of export scrapes",
		},
		[]string{"status"},
	)

	ScrapeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trendpulse",
			Name:      "scrape_duration_seconds",
			Help:      "Duration of export scrapes in seconds",
			Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120},
		},
	)

	// TrendsStoredTotal counts upserts by result.
	TrendsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "trends_stored_total",
			Help:      "Total number of trend upserts",
		},
		[]string{"status"},
	)

	// CorrelationsTotal counts processed trends by match outcome.
	CorrelationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "correlations_total",
			Help:      "Total number of trends sent to the matching service",
		},
		[]string{"outcome"},
	)

	// RegistryCallsTotal counts registration calls by endpoint and result.
	RegistryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "registry_calls_total",
			Help:      "Total number of registration calls",
		},
		[]string{"call", "status"},
	)

	// MarkerErrorsTotal counts processed markers that could not be written.
	MarkerErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "marker_errors_total",
			Help:      "Total number of processed markers that failed to persist",
		},
	)

	// RunsTotal counts pipeline runs by final status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendpulse",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"status"},
	)
)
